package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/handsign/internal/store"
)

// SessionHandler serves recorded sessions and their detections.
type SessionHandler struct {
	store *store.Store
}

func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

type detectionsResponse struct {
	Detections []*store.Detection `json:"detections"`
}

type summaryResponse struct {
	Session *store.Session       `json:"session"`
	Total   int                  `json:"total"`
	Counts  []store.GestureCount `json:"counts"`
}

// ServeHTTP routes /api/sessions, /api/sessions/{id},
// /api/sessions/{id}/detections and /api/sessions/{id}/summary.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions"), "/")
	if path == "" {
		h.list(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		h.get(w, id)
	case len(parts) == 2 && parts[1] == "detections":
		h.detections(w, r, id)
	case len(parts) == 2 && parts[1] == "summary":
		h.summary(w, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r, 50)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

// lookup writes a 404 or 500 and returns nil when the session is not
// available.
func (h *SessionHandler) lookup(w http.ResponseWriter, id string) *store.Session {
	sess, err := h.store.Sessions().GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return nil
	}
	return sess
}

func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	if sess := h.lookup(w, id); sess != nil {
		writeJSON(w, http.StatusOK, sess)
	}
}

func (h *SessionHandler) detections(w http.ResponseWriter, r *http.Request, id string) {
	limit, ok := queryLimit(r, 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if h.lookup(w, id) == nil {
		return
	}

	list, err := h.store.Detections().ListBySession(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list detections")
		return
	}
	if list == nil {
		list = []*store.Detection{}
	}
	writeJSON(w, http.StatusOK, detectionsResponse{Detections: list})
}

func (h *SessionHandler) summary(w http.ResponseWriter, id string) {
	sess := h.lookup(w, id)
	if sess == nil {
		return
	}

	counts, err := h.store.Detections().CountByGesture(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count detections")
		return
	}

	resp := summaryResponse{Session: sess, Counts: counts}
	if resp.Counts == nil {
		resp.Counts = []store.GestureCount{}
	}
	for _, c := range counts {
		resp.Total += c.Count
	}
	writeJSON(w, http.StatusOK, resp)
}
