package api

import (
	"net/http"
	"slices"
	"strings"

	"github.com/ayusman/camrover/internal/app"
	"github.com/ayusman/camrover/internal/capture"
	"github.com/ayusman/camrover/internal/control"
)

// ControlHandler turns HTTP requests into arbiter events.
type ControlHandler struct {
	ctl Controller
}

// NewControlHandler creates a ControlHandler for c.
func NewControlHandler(c Controller) *ControlHandler {
	return &ControlHandler{ctl: c}
}

// Register adds the control routes to mux.
func (h *ControlHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/labels", h.labels)
	mux.HandleFunc("POST /api/modes/{mode}", h.toggleMode)
	mux.HandleFunc("POST /api/command", h.command)
	mux.HandleFunc("GET /api/params", h.params)
	mux.HandleFunc("POST /api/params", h.param)
	mux.HandleFunc("POST /api/flash/toggle", h.toggleFlash)
	mux.HandleFunc("POST /api/target", h.target)
	mux.HandleFunc("POST /api/source", h.source)
	mux.HandleFunc("POST /api/reconnect", h.reconnect)
}

type commandRequest struct {
	Command string `json:"command"`
}

// paramRequest sets a rover variable. Framesize also accepts a resolution
// name such as "VGA" or "SVGA(800x600)" in place of the numeric value.
type paramRequest struct {
	Name       string `json:"name"`
	Value      *int   `json:"value"`
	Resolution string `json:"resolution"`
}

type paramInfo struct {
	Name    string `json:"name"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Default int    `json:"default"`
	Value   int    `json:"value"`
}

type paramsResponse struct {
	Params      []paramInfo `json:"params"`
	Resolutions []string    `json:"resolutions"`
}

var paramOrder = []control.Param{control.Speed, control.Flash, control.Quality, control.FrameSize}

type targetRequest struct {
	Label string `json:"label"`
}

type sourceRequest struct {
	Device *int   `json:"device"`
	URL    string `json:"url"`
}

type labelsResponse struct {
	Labels []string `json:"labels"`
	Target string   `json:"target"`
}

func (h *ControlHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

func (h *ControlHandler) labels(w http.ResponseWriter, r *http.Request) {
	labels := h.ctl.Labels()
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, http.StatusOK, labelsResponse{Labels: labels, Target: h.ctl.Snapshot().Target})
}

func (h *ControlHandler) toggleMode(w http.ResponseWriter, r *http.Request) {
	var ev app.Event
	switch r.PathValue("mode") {
	case "hand":
		ev = app.ToggleHandFollowing()
	case "detection":
		ev = app.ToggleDetection()
	case "auto":
		ev = app.ToggleAutoControl()
	default:
		writeError(w, http.StatusNotFound, "Unknown mode")
		return
	}
	post(w, h.ctl, ev)
}

func (h *ControlHandler) command(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cmd, err := control.ParseCommand(req.Command)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.ctl.Snapshot().Flags.AutoControl {
		writeError(w, http.StatusConflict, "Manual commands are disabled during auto control")
		return
	}
	post(w, h.ctl, app.Manual(cmd))
}

func (h *ControlHandler) param(w http.ResponseWriter, r *http.Request) {
	var req paramRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := control.ParseParam(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case req.Resolution != "" && req.Value != nil:
		writeError(w, http.StatusBadRequest, "Give either value or resolution")
		return
	case req.Resolution != "":
		if p != control.FrameSize {
			writeError(w, http.StatusBadRequest, "Resolution only applies to framesize")
			return
		}
		code, ok := control.FrameSizeCode(req.Resolution)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown resolution")
			return
		}
		post(w, h.ctl, app.SetParam(p, code))
	case req.Value != nil:
		post(w, h.ctl, app.SetParam(p, *req.Value))
	default:
		writeError(w, http.StatusBadRequest, "Value is required")
	}
}

func (h *ControlHandler) params(w http.ResponseWriter, r *http.Request) {
	current := h.ctl.Snapshot().Params
	resp := paramsResponse{
		Params:      make([]paramInfo, 0, len(paramOrder)),
		Resolutions: control.FrameSizeNames(),
	}
	for _, p := range paramOrder {
		rng := p.Range()
		value, ok := current[string(p)]
		if !ok {
			value = control.ParamDefaults[p]
		}
		resp.Params = append(resp.Params, paramInfo{
			Name:    string(p),
			Min:     rng.Min,
			Max:     rng.Max,
			Default: control.ParamDefaults[p],
			Value:   value,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ControlHandler) toggleFlash(w http.ResponseWriter, r *http.Request) {
	post(w, h.ctl, app.ToggleFlash())
}

func (h *ControlHandler) target(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		writeError(w, http.StatusBadRequest, "Label is required")
		return
	}
	if labels := h.ctl.Labels(); labels != nil && !slices.Contains(labels, label) {
		writeError(w, http.StatusBadRequest, "Unknown label")
		return
	}
	post(w, h.ctl, app.SetTarget(label))
}

func (h *ControlHandler) source(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var spec capture.Spec
	switch {
	case req.Device != nil && req.URL != "":
		writeError(w, http.StatusBadRequest, "Give either device or url")
		return
	case req.Device != nil:
		if *req.Device < 0 {
			writeError(w, http.StatusBadRequest, "Device must not be negative")
			return
		}
		spec = capture.Spec{Device: *req.Device}
	case req.URL != "":
		parsed, err := capture.ParseSpec(req.URL)
		if err != nil || !parsed.IsStream() {
			writeError(w, http.StatusBadRequest, "Invalid stream URL")
			return
		}
		spec = parsed
	default:
		writeError(w, http.StatusBadRequest, "Device or url is required")
		return
	}
	post(w, h.ctl, app.SwitchSource(spec))
}

func (h *ControlHandler) reconnect(w http.ResponseWriter, r *http.Request) {
	post(w, h.ctl, app.Reconnect())
}
