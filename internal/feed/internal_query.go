package feed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reconciler/internal/errs"
	"reconciler/internal/models"
	"reconciler/pkg/retry"
	"reconciler/pkg/timeutil"
)

// InternalQuery fetches the internal trading platform's own trades for a
// trade date. Query parameters are always passed through database/sql's
// placeholder mechanism — the original source's equivalent string-
// formatted the date directly into the SQL text, which spec.md §9 calls
// out by name as a correctness and security defect to fix here.
type InternalQuery struct {
	DB        *sql.DB
	TableName string
}

const internalQueryTemplate = `
SELECT trade_id, trade_date, settlement_date, instrument_id, instrument_name,
       quantity, price, currency, counterparty, account
FROM %s
WHERE trade_date >= $1 AND trade_date <= $2`

// Fetch runs a parameterized query bounded by the trade date's calendar
// day and normalizes each row. A connection or query failure returns
// errs.FeedIOError; the internal feed's FeedIOError is fatal to the run
// at the orchestrator level, unlike an external feed's.
func (a *InternalQuery) Fetch(ctx context.Context, tradeDate time.Time, sourceTag string) (<-chan NormalizeResult, error) {
	dayStart := timeutil.DayStartFrom(tradeDate)
	dayEnd := timeutil.DayEndFrom(tradeDate)

	table := a.TableName
	if table == "" {
		table = "trades"
	}

	// #nosec G201 -- table is a fixed, operator-configured identifier, not
	// user input; only the date bounds below are parameters.
	query := fmt.Sprintf(internalQueryTemplate, table)
	rows, err := retry.DoWithResult(ctx, func() (*sql.Rows, error) {
		return a.DB.QueryContext(ctx, query, dayStart, dayEnd)
	}, retryConfig())
	if err != nil {
		return nil, &errs.FeedIOError{Source: sourceTag, Err: err}
	}

	out := make(chan NormalizeResult)
	go func() {
		defer close(out)
		defer rows.Close()

		for rows.Next() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			var tradeID, instrumentID, instrumentName, currency, counterparty, account sql.NullString
			var rTradeDate, rSettlementDate time.Time
			var quantity, price float64

			if err := rows.Scan(&tradeID, &rTradeDate, &rSettlementDate, &instrumentID,
				&instrumentName, &quantity, &price, &currency, &counterparty, &account); err != nil {
				out <- NormalizeResult{Warning: &errs.ParseWarning{Source: sourceTag, Reason: err.Error()}}
				continue
			}

			raw := map[string]string{
				"trade_id":        tradeID.String,
				"trade_date":      rTradeDate.Format("2006-01-02"),
				"settlement_date": rSettlementDate.Format("2006-01-02"),
				"instrument_id":   instrumentID.String,
				"instrument_name": instrumentName.String,
				"quantity":        formatFloat(quantity),
				"price":           formatFloat(price),
				"currency":        currency.String,
				"counterparty":    counterparty.String,
				"account":         account.String,
			}

			trade, warning, err := Normalize(raw, models.SourceInternal)
			if err != nil {
				out <- NormalizeResult{Warning: &errs.ParseWarning{Source: sourceTag, Reason: err.Error()}}
				continue
			}
			if warning != nil {
				out <- NormalizeResult{Warning: warning}
			}
			out <- NormalizeResult{Trade: trade}
		}
	}()

	return out, nil
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%v", f)
}

// retryConfig retries a transient connection failure against the book of
// record without masking cooperative cancellation between orchestrator
// steps as a retryable error.
func retryConfig() retry.Config {
	cfg := retry.NetworkConfig()
	cfg.RetryIf = retry.RetryIfNotContext
	return cfg
}
