package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/camrover/internal/store"
)

// DefaultJournalLimit caps GET /api/commands when no limit is given.
const DefaultJournalLimit = 50

// JournalHandler serves the session journal.
type JournalHandler struct {
	store *store.Store
}

// NewJournalHandler creates a JournalHandler with the given store.
func NewJournalHandler(s *store.Store) *JournalHandler {
	return &JournalHandler{store: s}
}

// Register adds the journal routes to mux.
func (h *JournalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/commands", h.list)
	mux.HandleFunc("GET /api/commands/{id}", h.get)
	mux.HandleFunc("GET /api/settings", h.settings)
}

type listCommandsResponse struct {
	Session  string         `json:"session"`
	Total    int            `json:"total"`
	Failed   int            `json:"failed"`
	Commands []*store.Entry `json:"commands"`
}

// list handles GET /api/commands?limit=N and returns the newest entries.
func (h *JournalHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.store.Commands().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commands")
		return
	}
	total, failed, err := h.store.Commands().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count commands")
		return
	}
	if entries == nil {
		entries = []*store.Entry{}
	}

	writeJSON(w, http.StatusOK, listCommandsResponse{
		Session:  h.store.SessionID(),
		Total:    total,
		Failed:   failed,
		Commands: entries,
	})
}

func (h *JournalHandler) get(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.Commands().GetByID(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Command not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get command")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *JournalHandler) settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
