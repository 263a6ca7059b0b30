package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reconciler/internal/models"
)

// ErrTradeNotFound is returned when a lookup by id matches no row.
var ErrTradeNotFound = errors.New("repository: trade not found")

// TradeRepository persists the canonical Trade records produced by the
// normalizer.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository wraps an open database handle.
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts t, assigning t.ID from the row the database generates.
func (r *TradeRepository) Create(ctx context.Context, t *models.Trade) error {
	raw, err := json.Marshal(t.RawData)
	if err != nil {
		return fmt.Errorf("repository: marshal raw_data: %w", err)
	}

	query := `
		INSERT INTO trades (trade_id, source, trade_date, settlement_date, instrument_id,
			instrument_name, quantity, price, currency, counterparty, account, status,
			matched_trade_id, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		t.TradeID, t.Source, t.TradeDate, t.SettlementDate, t.InstrumentID,
		t.InstrumentName, t.Quantity, t.Price, t.Currency, t.Counterparty,
		t.Account, t.Status, nullString(t.MatchedTradeID), raw,
	).Scan(&t.ID)
}

// GetByID returns the trade with the given id.
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*models.Trade, error) {
	query := `
		SELECT id, trade_id, source, trade_date, settlement_date, instrument_id,
			instrument_name, quantity, price, currency, counterparty, account, status,
			matched_trade_id, raw_data
		FROM trades
		WHERE id = $1`

	t, err := scanTrade(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTradeNotFound
	}
	return t, err
}

// ListByTradeDateAndSource returns every trade observed for tradeDate from
// the given source, used by the orchestrator to assemble each day's
// internal and external trade sets.
func (r *TradeRepository) ListByTradeDateAndSource(ctx context.Context, tradeDate interface{}, source models.Source) ([]*models.Trade, error) {
	query := `
		SELECT id, trade_id, source, trade_date, settlement_date, instrument_id,
			instrument_name, quantity, price, currency, counterparty, account, status,
			matched_trade_id, raw_data
		FROM trades
		WHERE trade_date::date = $1::date AND source = $2
		ORDER BY trade_id`

	rows, err := r.db.QueryContext(ctx, query, tradeDate, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		t, err := scanTradeRows(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// UpdateStatus sets a trade's status and matched counterpart id in one
// statement, used after the matching engine pairs or breaks a trade.
func (r *TradeRepository) UpdateStatus(ctx context.Context, id string, status models.TradeStatus, matchedTradeID string) error {
	query := `UPDATE trades SET status = $1, matched_trade_id = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, nullString(matchedTradeID), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTradeNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	return scanTradeRows(row)
}

func scanTradeRows(row rowScanner) (*models.Trade, error) {
	t := &models.Trade{}
	var instrumentName, account, matchedTradeID sql.NullString
	var raw []byte

	err := row.Scan(
		&t.ID, &t.TradeID, &t.Source, &t.TradeDate, &t.SettlementDate, &t.InstrumentID,
		&instrumentName, &t.Quantity, &t.Price, &t.Currency, &t.Counterparty,
		&account, &t.Status, &matchedTradeID, &raw,
	)
	if err != nil {
		return nil, err
	}

	t.InstrumentName = instrumentName.String
	t.Account = account.String
	t.MatchedTradeID = matchedTradeID.String

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &t.RawData); err != nil {
			return nil, fmt.Errorf("repository: unmarshal raw_data: %w", err)
		}
	}

	return t, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
