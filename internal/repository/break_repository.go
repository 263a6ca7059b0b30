package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reconciler/internal/models"
)

// ErrBreakNotFound is returned when a lookup by id matches no row.
var ErrBreakNotFound = errors.New("repository: break not found")

// BreakRepository persists classified breaks and serves the aggregate
// queries the reporting package turns into a BreakReport.
type BreakRepository struct {
	db *sql.DB
}

// NewBreakRepository wraps an open database handle.
func NewBreakRepository(db *sql.DB) *BreakRepository {
	return &BreakRepository{db: db}
}

// Create inserts b, assigning b.ID from the row the database generates.
func (r *BreakRepository) Create(ctx context.Context, b *models.Break) error {
	query := `
		INSERT INTO breaks (run_id, break_type, severity, trade_ref, matched_trade_ref,
			expected_value, actual_value, difference, root_cause_category, auto_resolvable,
			sla_hours, priority_score, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		b.RunID, b.BreakType, b.Severity, b.TradeRef, nullString(b.MatchedTradeRef),
		b.ExpectedValue, b.ActualValue, b.Difference, b.RootCauseCategory, b.AutoResolvable,
		b.SLAHours, b.PriorityScore, b.Status, b.CreatedAt,
	).Scan(&b.ID)
}

// GetByID returns the break with the given id.
func (r *BreakRepository) GetByID(ctx context.Context, id string) (*models.Break, error) {
	query := `
		SELECT id, run_id, break_type, severity, trade_ref, matched_trade_ref,
			expected_value, actual_value, difference, root_cause_category, auto_resolvable,
			sla_hours, priority_score, status, created_at, resolved_at, resolution_notes
		FROM breaks
		WHERE id = $1`

	b, err := scanBreak(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBreakNotFound
	}
	return b, err
}

// ListByStatus returns every break in the given status, newest first. An
// empty status returns every break regardless of status.
func (r *BreakRepository) ListByStatus(ctx context.Context, status models.BreakStatus) ([]*models.Break, error) {
	var rows *sql.Rows
	var err error

	base := `
		SELECT id, run_id, break_type, severity, trade_ref, matched_trade_ref,
			expected_value, actual_value, difference, root_cause_category, auto_resolvable,
			sla_hours, priority_score, status, created_at, resolved_at, resolution_notes
		FROM breaks`

	if status == "" {
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY created_at DESC`)
	} else {
		rows, err = r.db.QueryContext(ctx, base+` WHERE status = $1 ORDER BY created_at DESC`, status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []*models.Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, err
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}

// UpdateResolution marks a break resolved with the given status and note.
func (r *BreakRepository) UpdateResolution(ctx context.Context, id string, status models.BreakStatus, note string, resolvedAt time.Time) error {
	query := `UPDATE breaks SET status = $1, resolution_notes = $2, resolved_at = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, status, note, resolvedAt, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBreakNotFound
	}
	return nil
}

// CountBySeverity returns the number of open (non-terminal) breaks per
// severity bucket.
func (r *BreakRepository) CountBySeverity(ctx context.Context) (map[models.Severity]int, error) {
	query := `
		SELECT severity, COUNT(*)
		FROM breaks
		WHERE status NOT IN ($1, $2)
		GROUP BY severity`

	rows, err := r.db.QueryContext(ctx, query, models.BreakStatusResolved, models.BreakStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Severity]int)
	for rows.Next() {
		var sev models.Severity
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, err
		}
		counts[sev] = n
	}
	return counts, rows.Err()
}

// CountByType returns the number of open breaks per break type.
func (r *BreakRepository) CountByType(ctx context.Context) (map[models.BreakType]int, error) {
	query := `
		SELECT break_type, COUNT(*)
		FROM breaks
		WHERE status NOT IN ($1, $2)
		GROUP BY break_type`

	rows, err := r.db.QueryContext(ctx, query, models.BreakStatusResolved, models.BreakStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.BreakType]int)
	for rows.Next() {
		var bt models.BreakType
		var n int
		if err := rows.Scan(&bt, &n); err != nil {
			return nil, err
		}
		counts[bt] = n
	}
	return counts, rows.Err()
}

// CounterpartyCount is one row of the by-counterparty aggregate.
type CounterpartyCount struct {
	Counterparty string
	Count        int
}

// TopCounterpartiesByOpenBreaks returns the counterparties with the most
// open breaks, joining through trades to resolve trade_ref to a
// counterparty name.
func (r *BreakRepository) TopCounterpartiesByOpenBreaks(ctx context.Context, limit int) ([]CounterpartyCount, error) {
	query := `
		SELECT t.counterparty, COUNT(*)
		FROM breaks b
		JOIN trades t ON t.id = b.trade_ref
		WHERE b.status NOT IN ($1, $2)
		GROUP BY t.counterparty
		ORDER BY COUNT(*) DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.BreakStatusResolved, models.BreakStatusClosed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CounterpartyCount
	for rows.Next() {
		var c CounterpartyCount
		if err := rows.Scan(&c.Counterparty, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AgingBuckets returns the count of open breaks in the three standard age
// buckets: under 24h, 24-72h, and over 72h.
func (r *BreakRepository) AgingBuckets(ctx context.Context, now time.Time) (AgingCounts, error) {
	query := `
		SELECT created_at
		FROM breaks
		WHERE status NOT IN ($1, $2)`

	rows, err := r.db.QueryContext(ctx, query, models.BreakStatusResolved, models.BreakStatusClosed)
	if err != nil {
		return AgingCounts{}, err
	}
	defer rows.Close()

	var counts AgingCounts
	for rows.Next() {
		var createdAt time.Time
		if err := rows.Scan(&createdAt); err != nil {
			return AgingCounts{}, err
		}
		age := now.Sub(createdAt).Hours()
		switch {
		case age < 24:
			counts.Under24h++
		case age < 72:
			counts.From24To72h++
		default:
			counts.Over72h++
		}
	}
	return counts, rows.Err()
}

// AgingCounts is the three-bucket age histogram over open breaks.
type AgingCounts struct {
	Under24h    int
	From24To72h int
	Over72h     int
}

func scanBreak(row rowScanner) (*models.Break, error) {
	b := &models.Break{}
	var matchedTradeRef, resolutionNotes sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.RunID, &b.BreakType, &b.Severity, &b.TradeRef, &matchedTradeRef,
		&b.ExpectedValue, &b.ActualValue, &b.Difference, &b.RootCauseCategory, &b.AutoResolvable,
		&b.SLAHours, &b.PriorityScore, &b.Status, &b.CreatedAt, &resolvedAt, &resolutionNotes,
	)
	if err != nil {
		return nil, err
	}

	b.MatchedTradeRef = matchedTradeRef.String
	b.ResolutionNotes = resolutionNotes.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		b.ResolvedAt = &t
	}
	return b, nil
}
