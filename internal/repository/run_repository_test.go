package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"reconciler/internal/models"
)

func TestRunRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	run := &models.ReconciliationRun{
		ID:        "RUN-1",
		TradeDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:    models.RunStatusRunning,
		StartedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`INSERT INTO reconciliation_runs`).
		WithArgs(run.ID, run.TradeDate, run.Status, 0, 0, 0, 0, 0, int64(0), "", run.StartedAt, run.FinishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRunRepository(db)
	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestRunRepositoryGetByTradeDateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	tradeDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, trade_date`).
		WithArgs(tradeDate).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "trade_date", "status", "internal_count", "external_count", "matched_count",
			"new_breaks_count", "auto_resolved_breaks", "duration_ns", "error_message",
			"started_at", "finished_at",
		}))

	repo := NewRunRepository(db)
	_, err = repo.GetByTradeDate(context.Background(), tradeDate)
	if err != ErrRunNotFound {
		t.Errorf("GetByTradeDate() error = %v, want ErrRunNotFound", err)
	}
}

func TestRunRepositoryGetByTradeDateReturnsRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	tradeDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	startedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "trade_date", "status", "internal_count", "external_count", "matched_count",
		"new_breaks_count", "auto_resolved_breaks", "duration_ns", "error_message",
		"started_at", "finished_at",
	}).AddRow("RUN-1", tradeDate, "completed", 10, 9, 8, 1, 0, int64(5000000000), "", startedAt, nil)

	mock.ExpectQuery(`SELECT id, trade_date`).WithArgs(tradeDate).WillReturnRows(rows)

	repo := NewRunRepository(db)
	got, err := repo.GetByTradeDate(context.Background(), tradeDate)
	if err != nil {
		t.Fatalf("GetByTradeDate() error = %v", err)
	}
	if got.Status != models.RunStatusCompleted || got.Duration != 5*time.Second {
		t.Errorf("GetByTradeDate() = %+v, want completed/5s", got)
	}
}

func TestRunRepositoryUpdateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	run := &models.ReconciliationRun{ID: "missing", Status: models.RunStatusCompleted}

	mock.ExpectExec(`UPDATE reconciliation_runs SET status`).
		WithArgs(run.Status, 0, 0, 0, 0, 0, int64(0), "", run.FinishedAt, run.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRunRepository(db)
	err = repo.Update(context.Background(), run)
	if err != ErrRunNotFound {
		t.Errorf("Update() error = %v, want ErrRunNotFound", err)
	}
}
