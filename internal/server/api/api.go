// Package api provides the HTTP handlers that control the rover and expose
// the session journal.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/camrover/internal/app"
)

// Controller is the part of the arbiter the handlers use.
type Controller interface {
	Post(ev app.Event) error
	Snapshot() *app.Snapshot
	Labels() []string
}

type errorResponse struct {
	Error string `json:"error"`
}

type acceptedResponse struct {
	Status string `json:"status"`
	Event  string `json:"event"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// post queues ev and answers 202, or 503 when the loop cannot take it.
func post(w http.ResponseWriter, c Controller, ev app.Event) {
	if err := c.Post(ev); err != nil {
		status := http.StatusServiceUnavailable
		if !errors.Is(err, app.ErrBusy) && !errors.Is(err, app.ErrStopped) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued", Event: ev.Kind.String()})
}
