package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/flood-risk-dashboard/internal/dashboard"
)

const maxBodyBytes = 4 << 10

type selectionRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

type sessionHandler struct {
	sessions *SessionStore
	validate *validator.Validate
	logger   *slog.Logger
}

func newSessionHandler(sessions *SessionStore, logger *slog.Logger) *sessionHandler {
	return &sessionHandler{sessions: sessions, validate: validator.New(), logger: logger}
}

// RegisterRoutes mounts the session routes on r.
func (h *sessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Delete("/", h.handleDelete)
		r.Post("/selection", h.handleSelect)
		r.Delete("/selection", h.handleClose)
	})
}

func (h *sessionHandler) handleCreate(w http.ResponseWriter, _ *http.Request) {
	s := h.sessions.Create()
	h.logger.Info("session created", "session", s.ID())
	writeJSON(w, http.StatusCreated, map[string]string{"id": s.ID()})
}

func (h *sessionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *sessionHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) handleSelect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req selectionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}

	if err := s.Select(s.Context(), *req.Index); err != nil {
		switch {
		case errors.Is(err, dashboard.ErrUnknownStation):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, dashboard.ErrNoCoordinates):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("selection failed", "session", s.ID(), "error", err)
			writeError(w, http.StatusInternalServerError, "selection failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

func (h *sessionHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Close(s.Context())
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *sessionHandler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return s, ok
}
