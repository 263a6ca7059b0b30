package matching

import (
	"github.com/shopspring/decimal"

	"reconciler/internal/config"
	"reconciler/internal/models"
	"reconciler/pkg/decimalutil"
)

// passesGate implements the hard validation gate: best_score >=
// min_match_score, instrument_id equal, price within tolerance (percent
// OR absolute), and quantity within tolerance (percent only, no absolute
// fallback — spec.md §4.2).
func passesGate(cfg config.MatchingConfig, bestScore float64, internal, external *models.Trade) bool {
	if bestScore < cfg.MinMatchScore {
		return false
	}
	if internal.InstrumentID != external.InstrumentID {
		return false
	}

	pricePctTol := decimal.NewFromFloat(cfg.PriceTolerancePercent)
	priceAbsTol := decimal.NewFromFloat(cfg.PriceToleranceAbsolute)
	if !decimalutil.WithinPctOrAbs(internal.Price, external.Price, internal.Price, pricePctTol, priceAbsTol) {
		return false
	}

	qtyPctTol := decimal.NewFromFloat(cfg.QuantityTolerancePercent)
	if !decimalutil.WithinPct(internal.Quantity, external.Quantity, internal.Quantity, qtyPctTol) {
		return false
	}

	return true
}

// fieldBreaks re-inspects an already-validated matched pair for intra-
// pair discrepancies, using the same thresholds but emitting a raw break
// per field rather than rejecting the pair. Severity/root cause/SLA are
// left zero-valued here — internal/breaks.Classify fills them in.
func fieldBreaks(cfg config.MatchingConfig, internal, external *models.Trade) []models.Break {
	var out []models.Break

	pricePctTol := decimal.NewFromFloat(cfg.PriceTolerancePercent)
	if decimalutil.PctDiff(internal.Price, external.Price, internal.Price).GreaterThan(pricePctTol) {
		out = append(out, models.Break{
			BreakType:       models.BreakTypePriceMismatch,
			TradeRef:        internal.ID,
			MatchedTradeRef: external.ID,
			ExpectedValue:   internal.Price,
			ActualValue:     external.Price,
			Difference:      external.Price.Sub(internal.Price),
		})
	}

	qtyPctTol := decimal.NewFromFloat(cfg.QuantityTolerancePercent)
	if !decimalutil.WithinPct(internal.Quantity, external.Quantity, internal.Quantity, qtyPctTol) {
		out = append(out, models.Break{
			BreakType:       models.BreakTypeQuantityMismatch,
			TradeRef:        internal.ID,
			MatchedTradeRef: external.ID,
			ExpectedValue:   internal.Quantity,
			ActualValue:     external.Quantity,
			Difference:      external.Quantity.Sub(internal.Quantity),
		})
	}

	if internal.SettlementDate.Format("2006-01-02") != external.SettlementDate.Format("2006-01-02") {
		out = append(out, models.Break{
			BreakType:       models.BreakTypeSettlementDateMismatch,
			TradeRef:        internal.ID,
			MatchedTradeRef: external.ID,
		})
	}

	if counterpartySimilarity(internal.Counterparty, external.Counterparty) < 1.0 {
		out = append(out, models.Break{
			BreakType:       models.BreakTypeCounterpartyMismatch,
			TradeRef:        internal.ID,
			MatchedTradeRef: external.ID,
		})
	}

	if internal.Account != external.Account {
		out = append(out, models.Break{
			BreakType:       models.BreakTypeAccountMismatch,
			TradeRef:        internal.ID,
			MatchedTradeRef: external.ID,
		})
	}

	if internal.Currency != external.Currency {
		out = append(out, models.Break{
			BreakType:       models.BreakTypeCurrencyMismatch,
			TradeRef:        internal.ID,
			MatchedTradeRef: external.ID,
		})
	}

	return out
}
