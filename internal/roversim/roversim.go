// Package roversim serves a stand-in for the rover's /control endpoint so
// the controller can be exercised without hardware.
package roversim

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/camrover/internal/control"
	"github.com/ayusman/camrover/internal/log"
)

// State is the simulated rover state.
type State struct {
	Motion    string         `json:"motion"`
	Command   int            `json:"command"`
	Params    map[string]int `json:"params"`
	Commands  int            `json:"commands"`
	Rejected  int            `json:"rejected"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// Handler implements the rover's control endpoint.
type Handler struct {
	mu      sync.Mutex
	state   State
	history []control.Command
	delay   time.Duration
	mux     *http.ServeMux
}

// New creates a Handler with the firmware's power-on state.
func New() *Handler {
	h := &Handler{
		state: State{
			Motion: control.Stop.String(),
			Params: make(map[string]int, len(control.ParamDefaults)),
		},
		mux: http.NewServeMux(),
	}
	for p, v := range control.ParamDefaults {
		h.state.Params[string(p)] = v
	}
	h.mux.HandleFunc("GET /control", h.handleControl)
	h.mux.HandleFunc("GET /status", h.handleStatus)
	return h
}

// SetDelay makes every control request wait d before answering.
func (h *Handler) SetDelay(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delay = d
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleControl(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	delay := h.delay
	h.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	q := r.URL.Query()
	switch {
	case q.Has("command"):
		code, err := strconv.Atoi(q.Get("command"))
		cmd := control.Command(code)
		if err != nil || !cmd.Valid() {
			h.reject(w, "bad command")
			return
		}
		h.mu.Lock()
		h.state.Motion = cmd.String()
		h.state.Command = code
		h.state.Commands++
		h.state.UpdatedAt = time.Now()
		h.history = append(h.history, cmd)
		h.mu.Unlock()
		log.Debug("sim command", "command", cmd.String())

	case q.Has("var") && q.Has("val"):
		p, err := control.ParseParam(q.Get("var"))
		if err != nil {
			h.reject(w, err.Error())
			return
		}
		val, err := strconv.Atoi(q.Get("val"))
		if err != nil {
			h.reject(w, "bad value")
			return
		}
		h.mu.Lock()
		h.state.Params[string(p)] = p.Clamp(val)
		h.state.UpdatedAt = time.Now()
		h.mu.Unlock()
		log.Debug("sim param", "param", string(p), "value", val)

	default:
		h.reject(w, "missing command or var/val")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) reject(w http.ResponseWriter, reason string) {
	h.mu.Lock()
	h.state.Rejected++
	h.mu.Unlock()
	http.Error(w, reason, http.StatusBadRequest)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.State())
}

// State returns a copy of the current state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.state
	s.Params = make(map[string]int, len(h.state.Params))
	for k, v := range h.state.Params {
		s.Params[k] = v
	}
	return s
}

// History returns every accepted motor command in arrival order.
func (h *Handler) History() []control.Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]control.Command(nil), h.history...)
}
