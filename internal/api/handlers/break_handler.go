package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"reconciler/internal/models"
	"reconciler/internal/repository"
)

// BreakHandler lists and resolves reconciliation breaks.
//
// Endpoints:
// - GET  /api/v1/breaks              - list breaks, optionally filtered by status
// - GET  /api/v1/breaks/{id}         - fetch one break
// - POST /api/v1/breaks/{id}/resolve - record a manual resolution
type BreakHandler struct {
	breaks *repository.BreakRepository
}

// NewBreakHandler wires the break repository.
func NewBreakHandler(breaks *repository.BreakRepository) *BreakHandler {
	return &BreakHandler{breaks: breaks}
}

// GetBreaks lists breaks. ?status= filters to one status; omitted or
// empty returns every break regardless of status.
func (h *BreakHandler) GetBreaks(w http.ResponseWriter, r *http.Request) {
	status := models.BreakStatus(r.URL.Query().Get("status"))

	list, err := h.breaks.ListByStatus(r.Context(), status)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to list breaks", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}

// GetBreak fetches a single break by id.
func (h *BreakHandler) GetBreak(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	b, err := h.breaks.GetByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, b)
}

// ResolveBreakRequest is the POST /breaks/{id}/resolve body.
type ResolveBreakRequest struct {
	Status models.BreakStatus `json:"status"`
	Notes  string             `json:"notes"`
}

// ResolveBreak records a manual disposition for a break, independent of
// the auto-resolver's own rule evaluation.
func (h *BreakHandler) ResolveBreak(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ResolveBreakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.Status == "" {
		respondWithError(w, http.StatusBadRequest, "missing_status", "status is required", "")
		return
	}

	if err := h.breaks.UpdateResolution(r.Context(), id, req.Status, req.Notes, time.Now()); err != nil {
		h.handleServiceError(w, err)
		return
	}

	b, err := h.breaks.GetByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, b)
}

func (h *BreakHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrBreakNotFound):
		respondWithError(w, http.StatusNotFound, "break_not_found", "Break not found", "")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
