package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reconciler/internal/models"
)

// Store is the storage adapter contract the orchestrator and HTTP
// surface depend on. PostgresStore is the production implementation;
// tests substitute a fake or drive PostgresStore itself against
// go-sqlmock.
type Store interface {
	CreateRun(ctx context.Context, run *models.ReconciliationRun) error
	UpdateRun(ctx context.Context, run *models.ReconciliationRun) error
	RunForTradeDate(ctx context.Context, tradeDate time.Time) (*models.ReconciliationRun, error)
	SupersedeRun(ctx context.Context, id string) error

	CreateTrade(ctx context.Context, t *models.Trade) error
	TradesByDateAndSource(ctx context.Context, tradeDate time.Time, source models.Source) ([]*models.Trade, error)

	CreateBreak(ctx context.Context, b *models.Break) error
	BreaksByStatus(ctx context.Context, status models.BreakStatus) ([]*models.Break, error)
	ResolveBreak(ctx context.Context, id string, status models.BreakStatus, note string, resolvedAt time.Time) error

	// CommitMatchedPair persists a matched pair's status update on both
	// trades in a single transaction: both rows change or neither does.
	CommitMatchedPair(ctx context.Context, internal, external *models.Trade) error

	Breaks() *BreakRepository
}

// PostgresStore wires the individual *_repository.go adapters over one
// shared *sql.DB connection pool.
type PostgresStore struct {
	db     *sql.DB
	trades *TradeRepository
	breaks *BreakRepository
	runs   *RunRepository
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore builds a PostgresStore over an already-open connection
// pool (see Open).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		trades: NewTradeRepository(db),
		breaks: NewBreakRepository(db),
		runs:   NewRunRepository(db),
	}
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.ReconciliationRun) error {
	return s.runs.Create(ctx, run)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.ReconciliationRun) error {
	return s.runs.Update(ctx, run)
}

func (s *PostgresStore) RunForTradeDate(ctx context.Context, tradeDate time.Time) (*models.ReconciliationRun, error) {
	return s.runs.GetByTradeDate(ctx, tradeDate)
}

func (s *PostgresStore) SupersedeRun(ctx context.Context, id string) error {
	return s.runs.MarkSuperseded(ctx, id)
}

func (s *PostgresStore) CreateTrade(ctx context.Context, t *models.Trade) error {
	return s.trades.Create(ctx, t)
}

func (s *PostgresStore) TradesByDateAndSource(ctx context.Context, tradeDate time.Time, source models.Source) ([]*models.Trade, error) {
	return s.trades.ListByTradeDateAndSource(ctx, tradeDate, source)
}

func (s *PostgresStore) CreateBreak(ctx context.Context, b *models.Break) error {
	return s.breaks.Create(ctx, b)
}

func (s *PostgresStore) BreaksByStatus(ctx context.Context, status models.BreakStatus) ([]*models.Break, error) {
	return s.breaks.ListByStatus(ctx, status)
}

func (s *PostgresStore) ResolveBreak(ctx context.Context, id string, status models.BreakStatus, note string, resolvedAt time.Time) error {
	return s.breaks.UpdateResolution(ctx, id, status, note, resolvedAt)
}

func (s *PostgresStore) Breaks() *BreakRepository {
	return s.breaks
}

// CommitMatchedPair updates both sides of a matched pair's status and
// cross-reference inside one transaction, so a crash between the two
// updates can never leave one trade matched and the other not.
func (s *PostgresStore) CommitMatchedPair(ctx context.Context, internal, external *models.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin matched pair tx: %w", err)
	}

	query := `UPDATE trades SET status = $1, matched_trade_id = $2 WHERE id = $3`

	if _, err := tx.ExecContext(ctx, query, internal.Status, nullString(internal.MatchedTradeID), internal.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("repository: update internal trade: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, external.Status, nullString(external.MatchedTradeID), external.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("repository: update external trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit matched pair tx: %w", err)
	}
	return nil
}
