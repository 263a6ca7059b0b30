package handlers

import (
	"net/http"
	"time"

	"reconciler/internal/reporting"
)

// ReportHandler serves the aggregated break report.
//
// Endpoints:
// - GET /api/v1/reports - generate the current break report
type ReportHandler struct {
	generator *reporting.Generator
}

// NewReportHandler wires the report generator.
func NewReportHandler(generator *reporting.Generator) *ReportHandler {
	return &ReportHandler{generator: generator}
}

// GetReport generates a report. ?start= and ?end= (YYYY-MM-DD) label the
// reported period; both default to today since every aggregate query
// operates on the live open-break population regardless of the label.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	start := now
	if v := r.URL.Query().Get("start"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_start", "start must be YYYY-MM-DD", err.Error())
			return
		}
		start = parsed
	}

	end := now
	if v := r.URL.Query().Get("end"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_end", "end must be YYYY-MM-DD", err.Error())
			return
		}
		end = parsed
	}

	report, err := h.generator.Generate(r.Context(), start, end, now)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to generate report", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}
