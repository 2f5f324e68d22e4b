package app

import (
	"time"

	"github.com/ayusman/camrover/internal/control"
	"github.com/ayusman/camrover/internal/detector"
	"github.com/ayusman/camrover/internal/overlay"
)

// Snapshot is an immutable copy of the arbiter state, published after every
// tick and event.
type Snapshot struct {
	Mode          string               `json:"mode"`
	Flags         Flags                `json:"flags"`
	Target        string               `json:"target"`
	FrameCount    uint64               `json:"frame_count"`
	Source        string               `json:"source"`
	SourceOpen    bool                 `json:"source_open"`
	HandStatus    string               `json:"hand_status,omitempty"`
	Detections    []detector.Detection `json:"detections"`
	Overlay       overlay.Texts        `json:"overlay"`
	LastCommand   string               `json:"last_command,omitempty"`
	LastCommandAt time.Time            `json:"last_command_at,omitzero"`
	Params        map[string]int       `json:"params"`
	LastError     string               `json:"last_error,omitempty"`
	Stopped       bool                 `json:"stopped"`
	At            time.Time            `json:"at"`
}

// Snapshot returns the latest published state. It is safe to call from any
// goroutine.
func (a *Arbiter) Snapshot() *Snapshot {
	return a.snap.Load()
}

func (a *Arbiter) publish() {
	params := make(map[string]int, len(a.params))
	for p, v := range a.params {
		params[string(p)] = v
	}

	s := &Snapshot{
		Mode:       a.flags.Mode().String(),
		Flags:      a.flags,
		Target:     a.target,
		FrameCount: a.frameCount,
		HandStatus: a.handStatus,
		Detections: append([]detector.Detection{}, a.recent...),
		Overlay:    a.overlay.Texts(),
		Params:     params,
		LastError:  a.lastErr,
		Stopped:    a.quit,
		At:         a.clock.Now(),
	}
	if a.source != nil {
		s.Source = a.source.Spec().String()
		s.SourceOpen = a.source.IsOpen()
	}
	if a.lastCmd != control.None {
		s.LastCommand = a.lastCmd.String()
		s.LastCommandAt = a.lastCmdAt
	}
	a.snap.Store(s)
}
