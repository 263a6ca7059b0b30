package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"reconciler/internal/models"
	"reconciler/internal/repository"
)

func newTestBreakHandler(t *testing.T) (*BreakHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBreakHandler(repository.NewBreakRepository(db)), mock
}

var breakColumns = []string{
	"id", "run_id", "break_type", "severity", "trade_ref", "matched_trade_ref",
	"expected_value", "actual_value", "difference", "root_cause_category", "auto_resolvable",
	"sla_hours", "priority_score", "status", "created_at", "resolved_at", "resolution_notes",
}

func TestBreakHandlerGetBreaksFiltersByStatus(t *testing.T) {
	h, mock := newTestBreakHandler(t)

	mock.ExpectQuery(`SELECT id, run_id, break_type`).
		WithArgs(models.BreakStatusOpen).
		WillReturnRows(sqlmock.NewRows(breakColumns).
			AddRow("BRK-1", "RUN-1", "PRICE_MISMATCH", "high", "TR-1", "TR-2",
				decimal.RequireFromString("10"), decimal.RequireFromString("10.5"), decimal.RequireFromString("0.5"),
				"data_entry_error", false, 4, 510.0, "open", time.Now(), nil, ""))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/breaks?status=open", nil)
	w := httptest.NewRecorder()

	h.GetBreaks(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got []models.Break
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "BRK-1" {
		t.Errorf("got %+v, want one break BRK-1", got)
	}
}

func TestBreakHandlerGetBreakQueryError(t *testing.T) {
	h, mock := newTestBreakHandler(t)

	mock.ExpectQuery(`SELECT id, run_id, break_type`).
		WithArgs("missing").
		WillReturnError(errors.New("connection reset"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/breaks/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	w := httptest.NewRecorder()

	h.GetBreak(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d for an unexpected query error", w.Code, http.StatusInternalServerError)
	}
}

func TestBreakHandlerResolveBreakRequiresStatus(t *testing.T) {
	h, _ := newTestBreakHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/breaks/BRK-1/resolve", jsonBody(t, ResolveBreakRequest{Notes: "accepted"}))
	req = mux.SetURLVars(req, map[string]string{"id": "BRK-1"})
	w := httptest.NewRecorder()

	h.ResolveBreak(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d when status is missing", w.Code, http.StatusBadRequest)
	}
}

func TestBreakHandlerResolveBreakSuccess(t *testing.T) {
	h, mock := newTestBreakHandler(t)

	mock.ExpectExec(`UPDATE breaks SET status`).
		WithArgs(models.BreakStatusResolved, "accepted external value", sqlmock.AnyArg(), "BRK-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT id, run_id, break_type`).
		WithArgs("BRK-1").
		WillReturnRows(sqlmock.NewRows(breakColumns).
			AddRow("BRK-1", "RUN-1", "PRICE_MISMATCH", "high", "TR-1", "TR-2",
				decimal.RequireFromString("10"), decimal.RequireFromString("10.5"), decimal.RequireFromString("0.5"),
				"data_entry_error", false, 4, 510.0, "resolved", time.Now(), time.Now(), "accepted external value"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/breaks/BRK-1/resolve",
		jsonBody(t, ResolveBreakRequest{Status: models.BreakStatusResolved, Notes: "accepted external value"}))
	req = mux.SetURLVars(req, map[string]string{"id": "BRK-1"})
	w := httptest.NewRecorder()

	h.ResolveBreak(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
}
