// Package breaks classifies raw breaks produced by the matching engine:
// severity, root cause, auto-resolvability, SLA budget, and a priority
// score used to order an operator's queue.
package breaks

import (
	"time"

	"github.com/shopspring/decimal"

	"reconciler/internal/models"
)

const (
	impactCritical = 100000
	impactHigh     = 10000
	impactMedium   = 1000

	notionalBonusHigh = 1000000
	notionalBonusLow  = 100000

	dataEntryErrorPctThreshold = 0.1
	autoResolveAbsThreshold    = 0.01
)

// Classify assigns severity, root cause, auto-resolvable, SLA hours, and
// priority score to a raw break. internal and/or external may be nil —
// a missing-side break carries only the trade on the side that exists.
func Classify(b models.Break, internal, external *models.Trade, now time.Time) models.Break {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.Status == "" {
		b.Status = models.BreakStatusOpen
	}

	b.Severity = severityFor(b, internal, external)
	b.RootCauseCategory = rootCauseFor(b, internal, external)
	b.SLAHours = slaHours(b.Severity)
	b.AutoResolvable = autoResolvable(b, internal, external)
	b.PriorityScore = priorityScore(b, internal, external, now)
	return b
}

func severityFor(b models.Break, internal, external *models.Trade) models.Severity {
	switch b.BreakType {
	case models.BreakTypeMissingExternalTrade, models.BreakTypeMissingInternalTrade:
		return models.SeverityCritical
	case models.BreakTypeCurrencyMismatch:
		return models.SeverityCritical
	case models.BreakTypePriceMismatch, models.BreakTypeQuantityMismatch:
		return severityByImpact(impactOf(b, internal, external))
	case models.BreakTypeSettlementDateMismatch:
		return models.SeverityMedium
	case models.BreakTypeCounterpartyMismatch, models.BreakTypeAccountMismatch:
		return models.SeverityHigh
	default:
		return models.SeverityLow
	}
}

// impactOf is |difference| × the counterpart's matching quantity/price:
// for a price mismatch the counterpart figure is quantity, for a quantity
// mismatch it is price.
func impactOf(b models.Break, internal, external *models.Trade) decimal.Decimal {
	trade := internal
	if trade == nil {
		trade = external
	}
	if trade == nil {
		return decimal.Zero
	}

	diff := b.Difference.Abs()
	switch b.BreakType {
	case models.BreakTypePriceMismatch:
		return diff.Mul(trade.Quantity.Abs())
	case models.BreakTypeQuantityMismatch:
		return diff.Mul(trade.Price.Abs())
	default:
		return diff
	}
}

func severityByImpact(impact decimal.Decimal) models.Severity {
	f, _ := impact.Float64()
	switch {
	case f > impactCritical:
		return models.SeverityCritical
	case f > impactHigh:
		return models.SeverityHigh
	case f > impactMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func rootCauseFor(b models.Break, internal, external *models.Trade) models.RootCause {
	switch b.BreakType {
	case models.BreakTypeMissingExternalTrade:
		if internal != nil && internal.TradeDate.In(internal.ExchangeLocation()).Hour() >= 16 {
			return models.RootCauseLateBooking
		}
		return models.RootCauseBrokerFeedIssue
	case models.BreakTypeMissingInternalTrade:
		return models.RootCauseInternalBookingErr
	case models.BreakTypePriceMismatch:
		if priceDiffPct(b, internal) > dataEntryErrorPctThreshold {
			return models.RootCauseDataEntryError
		}
		return models.RootCauseRoundingDifference
	case models.BreakTypeQuantityMismatch:
		return models.RootCausePartialFill
	default:
		return models.RootCauseUnknown
	}
}

func priceDiffPct(b models.Break, internal *models.Trade) float64 {
	if internal == nil || internal.Price.IsZero() {
		return 0
	}
	pct, _ := b.Difference.Abs().Div(internal.Price.Abs()).Float64()
	return pct
}

func slaHours(severity models.Severity) int {
	switch severity {
	case models.SeverityCritical:
		return 2
	case models.SeverityHigh:
		return 4
	case models.SeverityMedium:
		return 24
	default:
		return 48
	}
}

// autoResolvable is true only for low/medium severity breaks where the
// root cause is a rounding difference, the discrepancy is a settlement
// date within one day, or the raw difference is negligible.
func autoResolvable(b models.Break, internal, external *models.Trade) bool {
	if b.Severity != models.SeverityLow && b.Severity != models.SeverityMedium {
		return false
	}
	if b.RootCauseCategory == models.RootCauseRoundingDifference {
		return true
	}
	if b.BreakType == models.BreakTypeSettlementDateMismatch && settlementWithinOneDay(internal, external) {
		return true
	}
	return b.Difference.Abs().LessThan(decimal.NewFromFloat(autoResolveAbsThreshold))
}

func settlementWithinOneDay(internal, external *models.Trade) bool {
	if internal == nil || external == nil {
		return false
	}
	delta := internal.SettlementDate.Sub(external.SettlementDate)
	if delta < 0 {
		delta = -delta
	}
	return delta <= 24*time.Hour
}

func priorityScore(b models.Break, internal, external *models.Trade, now time.Time) float64 {
	base := map[models.Severity]float64{
		models.SeverityCritical: 1000,
		models.SeverityHigh:     500,
		models.SeverityMedium:   100,
		models.SeverityLow:      10,
	}[b.Severity]

	score := base + 10*b.AgeHours(now)

	notional := notionalOf(internal, external)
	nf, _ := notional.Float64()
	switch {
	case nf > notionalBonusHigh:
		score += 200
	case nf > notionalBonusLow:
		score += 100
	}

	return score
}

func notionalOf(internal, external *models.Trade) decimal.Decimal {
	if internal != nil {
		return internal.AbsNotional()
	}
	if external != nil {
		return external.AbsNotional()
	}
	return decimal.Zero
}
