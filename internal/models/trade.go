package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle field of a canonical Trade. It is never
// supplied by a feed — the normalizer always starts a trade at
// TradeStatusUnmatched and later stages advance it.
type TradeStatus string

const (
	TradeStatusUnmatched     TradeStatus = "unmatched"
	TradeStatusMatched       TradeStatus = "matched"
	TradeStatusBreak         TradeStatus = "break"
	TradeStatusInvestigating TradeStatus = "investigating"
	TradeStatusResolved      TradeStatus = "resolved"
)

// Source identifies which side of a reconciliation a Trade came from.
type Source string

const (
	SourceInternal Source = "internal"
)

// Trade is one economic transaction as observed by one side. It is the
// single canonical record every feed adapter must produce — raw payload
// shapes never leak past the normalizer.
type Trade struct {
	ID              string          `json:"id" db:"id"`
	TradeID         string          `json:"trade_id" db:"trade_id"`
	Source          Source          `json:"source" db:"source"`
	TradeDate       time.Time       `json:"trade_date" db:"trade_date"`
	SettlementDate  time.Time       `json:"settlement_date" db:"settlement_date"`
	InstrumentID    string          `json:"instrument_id" db:"instrument_id"`
	InstrumentName  string          `json:"instrument_name,omitempty" db:"instrument_name"`
	Quantity        decimal.Decimal `json:"quantity" db:"quantity"`
	Price           decimal.Decimal `json:"price" db:"price"`
	Currency        string          `json:"currency" db:"currency"`
	Counterparty    string          `json:"counterparty" db:"counterparty"`
	Account         string          `json:"account,omitempty" db:"account"`
	Status          TradeStatus     `json:"status" db:"status"`
	MatchedTradeID  string          `json:"matched_trade_id,omitempty" db:"matched_trade_id"`
	RawData         map[string]string `json:"raw_data,omitempty" db:"raw_data"`
}

// Notional returns price * quantity.
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// AbsNotional returns |price * quantity|, used by impact-bucketing in the
// break classifier, which never cares about sign.
func (t *Trade) AbsNotional() decimal.Decimal {
	return t.Notional().Abs()
}

// Validate checks the invariants from the data model: price > 0, quantity
// != 0, settlement_date >= trade_date. A violation is reported but the row
// is not rejected by Validate itself — callers decide whether to drop it.
// The normalizer does not call Validate.
func (t *Trade) Validate() []string {
	var problems []string
	if !t.Price.IsPositive() {
		problems = append(problems, "price must be > 0")
	}
	if t.Quantity.IsZero() {
		problems = append(problems, "quantity must be != 0")
	}
	if t.SettlementDate.Before(t.TradeDate) {
		problems = append(problems, "settlement_date must be >= trade_date")
	}
	return problems
}

// ExchangeLocation returns the time.Location carried on TradeDate, used to
// evaluate the "late booking" EOD cutoff in the break classifier against
// exchange-local time rather than UTC or the running process's zone.
func (t *Trade) ExchangeLocation() *time.Location {
	return t.TradeDate.Location()
}
