package store

import (
	"github.com/ayusman/camrover/internal/link"
	"github.com/ayusman/camrover/internal/log"
)

// FromResult converts a finished rover call into a journal entry.
func FromResult(res link.Result) *Entry {
	e := &Entry{
		Status:  res.Status,
		Latency: res.Latency,
		At:      res.At,
	}
	if res.Param != "" {
		e.Kind = KindParam
		e.Name = string(res.Param)
		e.Value = res.Value
	} else {
		e.Kind = KindCommand
		e.Name = res.Command.String()
		e.Value = res.Command.Code()
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

// Observe records res. It matches link.WithObserver so the journal can be
// attached to a client directly.
func (r *CommandRepository) Observe(res link.Result) {
	if err := r.Record(FromResult(res)); err != nil {
		log.Warn("failed to journal rover call", "err", err)
	}
}
