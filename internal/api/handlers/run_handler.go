package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"reconciler/internal/errs"
	"reconciler/internal/orchestrator"
	"reconciler/internal/repository"
)

// RunHandler triggers and inspects daily reconciliation runs.
//
// Endpoints:
// - POST /api/v1/runs           - trigger a reconciliation run
// - GET  /api/v1/runs/{date}    - fetch the run for a trade date
type RunHandler struct {
	orchestrator *orchestrator.Orchestrator
	runs         *repository.RunRepository
}

// NewRunHandler wires the orchestrator and the run repository used to
// serve lookups the orchestrator itself has no reason to expose.
func NewRunHandler(o *orchestrator.Orchestrator, runs *repository.RunRepository) *RunHandler {
	return &RunHandler{orchestrator: o, runs: runs}
}

// TriggerRunRequest is the POST /runs body.
type TriggerRunRequest struct {
	TradeDate  string `json:"trade_date"`
	ForceRerun bool   `json:"force_rerun"`
}

// TriggerRun runs the pipeline synchronously for the requested trade
// date and returns the resulting run record, including its final
// status. A run already in progress or completed for the same date
// without force_rerun is rejected with 409.
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	tradeDate, err := time.Parse("2006-01-02", req.TradeDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_trade_date", "trade_date must be YYYY-MM-DD", err.Error())
		return
	}

	run, err := h.orchestrator.RunDailyReconciliation(r.Context(), tradeDate, orchestrator.RunOptions{ForceRerun: req.ForceRerun})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, run)
}

// GetRun returns the most recent run for a trade date.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	dateParam := mux.Vars(r)["date"]
	tradeDate, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_trade_date", "date must be YYYY-MM-DD", err.Error())
		return
	}

	run, err := h.runs.GetByTradeDate(r.Context(), tradeDate)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, run)
}

func (h *RunHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrRunNotFound):
		respondWithError(w, http.StatusNotFound, "run_not_found", "No run found for this trade date", "")

	case errors.Is(err, errs.ErrReconciliationAlreadyRun):
		respondWithError(w, http.StatusConflict, "run_already_exists", "A run already exists for this trade date", "retry with force_rerun=true to supersede it")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
