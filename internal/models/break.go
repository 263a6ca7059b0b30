package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BreakType enumerates the discrepancy kinds the matching engine and its
// post-pairing re-inspection can emit.
type BreakType string

const (
	BreakTypeMissingExternalTrade   BreakType = "MISSING_EXTERNAL_TRADE"
	BreakTypeMissingInternalTrade   BreakType = "MISSING_INTERNAL_TRADE"
	BreakTypePriceMismatch          BreakType = "PRICE_MISMATCH"
	BreakTypeQuantityMismatch       BreakType = "QUANTITY_MISMATCH"
	BreakTypeSettlementDateMismatch BreakType = "SETTLEMENT_DATE_MISMATCH"
	BreakTypeCounterpartyMismatch   BreakType = "COUNTERPARTY_MISMATCH"
	BreakTypeAccountMismatch        BreakType = "ACCOUNT_MISMATCH"
	BreakTypeCurrencyMismatch       BreakType = "CURRENCY_MISMATCH"
)

// Severity is the classifier-assigned urgency bucket.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// BreakStatus is the workflow lifecycle field.
type BreakStatus string

const (
	BreakStatusOpen            BreakStatus = "open"
	BreakStatusAssigned        BreakStatus = "assigned"
	BreakStatusInProgress      BreakStatus = "in-progress"
	BreakStatusPendingResponse BreakStatus = "pending-response"
	BreakStatusResolved        BreakStatus = "resolved"
	BreakStatusEscalated       BreakStatus = "escalated"
	BreakStatusClosed          BreakStatus = "closed"
)

// RootCause is the classifier-assigned explanation category.
type RootCause string

const (
	RootCauseLateBooking        RootCause = "late_booking"
	RootCauseBrokerFeedIssue    RootCause = "broker_feed_issue"
	RootCauseInternalBookingErr RootCause = "internal_booking_error"
	RootCauseDataEntryError     RootCause = "data_entry_error"
	RootCauseRoundingDifference RootCause = "rounding_difference"
	RootCausePartialFill        RootCause = "partial_fill"
	RootCauseUnknown            RootCause = "unknown"
)

// Break is a discrepancy involving one or two trades.
type Break struct {
	ID                string          `json:"id" db:"id"`
	RunID             string          `json:"run_id" db:"run_id"`
	BreakType         BreakType       `json:"break_type" db:"break_type"`
	Severity          Severity        `json:"severity" db:"severity"`
	TradeRef          string          `json:"trade_ref" db:"trade_ref"`
	MatchedTradeRef   string          `json:"matched_trade_ref,omitempty" db:"matched_trade_ref"`
	ExpectedValue     decimal.Decimal `json:"expected_value" db:"expected_value"`
	ActualValue       decimal.Decimal `json:"actual_value" db:"actual_value"`
	Difference        decimal.Decimal `json:"difference" db:"difference"`
	RootCauseCategory RootCause       `json:"root_cause_category" db:"root_cause_category"`
	AutoResolvable    bool            `json:"auto_resolvable" db:"auto_resolvable"`
	SLAHours          int             `json:"sla_hours" db:"sla_hours"`
	PriorityScore     float64         `json:"priority_score" db:"priority_score"`
	Status            BreakStatus     `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNotes   string          `json:"resolution_notes,omitempty" db:"resolution_notes"`
}

// IsMissingSide reports whether b is a one-sided break, which per the data
// model invariant must never carry a MatchedTradeRef.
func (b *Break) IsMissingSide() bool {
	return b.BreakType == BreakTypeMissingExternalTrade || b.BreakType == BreakTypeMissingInternalTrade
}

// AgeHours returns the break's age in hours as of now, used by priority
// scoring and the SLA breach sweep.
func (b *Break) AgeHours(now time.Time) float64 {
	return now.Sub(b.CreatedAt).Hours()
}

// SLADeadline returns CreatedAt + SLAHours, the instant after which the
// break is considered SLA-breached if still open.
func (b *Break) SLADeadline() time.Time {
	return b.CreatedAt.Add(time.Duration(b.SLAHours) * time.Hour)
}

// IsTerminal reports whether b is in a status the SLA sweep and the
// pattern detector should ignore as no longer open.
func (b *Break) IsTerminal() bool {
	return b.Status == BreakStatusResolved || b.Status == BreakStatusClosed
}

// MarkResolved closes b with the given resolution note at resolvedAt,
// mirroring the invariant that ResolvedAt is non-nil iff Status is
// resolved or closed.
func (b *Break) MarkResolved(status BreakStatus, note string, resolvedAt time.Time) {
	b.Status = status
	b.ResolutionNotes = note
	t := resolvedAt
	b.ResolvedAt = &t
}
