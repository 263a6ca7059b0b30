package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reconciler/internal/models"
)

// ErrRunNotFound is returned when a lookup by trade date or id matches no
// row.
var ErrRunNotFound = errors.New("repository: reconciliation run not found")

// RunRepository persists ReconciliationRun records.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository wraps an open database handle.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run row. The caller is expected to have already
// assigned run.ID (a client-generated UUID, per the orchestrator's need
// to reference the run id before the row exists for the workflow
// collaborator and subsequent break inserts in the same run).
func (r *RunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	query := `
		INSERT INTO reconciliation_runs (id, trade_date, status, internal_count, external_count,
			matched_count, new_breaks_count, auto_resolved_breaks, duration_ns, error_message,
			started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.TradeDate, run.Status, run.InternalCount, run.ExternalCount,
		run.MatchedCount, run.NewBreaksCount, run.AutoResolvedBreaks, run.Duration.Nanoseconds(),
		run.ErrorMessage, run.StartedAt, run.FinishedAt,
	)
	return err
}

// Update persists the mutable progress/outcome fields of an existing run.
func (r *RunRepository) Update(ctx context.Context, run *models.ReconciliationRun) error {
	query := `
		UPDATE reconciliation_runs
		SET status = $1, internal_count = $2, external_count = $3, matched_count = $4,
			new_breaks_count = $5, auto_resolved_breaks = $6, duration_ns = $7,
			error_message = $8, finished_at = $9
		WHERE id = $10`

	result, err := r.db.ExecContext(ctx, query,
		run.Status, run.InternalCount, run.ExternalCount, run.MatchedCount,
		run.NewBreaksCount, run.AutoResolvedBreaks, run.Duration.Nanoseconds(),
		run.ErrorMessage, run.FinishedAt, run.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetByTradeDate returns the most recent run for the given trade date, if
// any — used by the orchestrator's ReconciliationAlreadyRun guard.
func (r *RunRepository) GetByTradeDate(ctx context.Context, tradeDate time.Time) (*models.ReconciliationRun, error) {
	query := `
		SELECT id, trade_date, status, internal_count, external_count, matched_count,
			new_breaks_count, auto_resolved_breaks, duration_ns, error_message, started_at, finished_at
		FROM reconciliation_runs
		WHERE trade_date::date = $1::date
		ORDER BY started_at DESC
		LIMIT 1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, tradeDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// MarkSuperseded flips a prior run's status to superseded, used when a
// force-rerun replaces it.
func (r *RunRepository) MarkSuperseded(ctx context.Context, id string) error {
	query := `UPDATE reconciliation_runs SET status = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, models.RunStatusSuperseded, id)
	return err
}

func scanRun(row rowScanner) (*models.ReconciliationRun, error) {
	run := &models.ReconciliationRun{}
	var durationNs int64
	var errMsg sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.TradeDate, &run.Status, &run.InternalCount, &run.ExternalCount,
		&run.MatchedCount, &run.NewBreaksCount, &run.AutoResolvedBreaks, &durationNs,
		&errMsg, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Duration = time.Duration(durationNs)
	run.ErrorMessage = errMsg.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return run, nil
}
