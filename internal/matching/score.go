package matching

import (
	"context"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"reconciler/internal/config"
	"reconciler/internal/models"
	"reconciler/pkg/decimalutil"
)

// Scorer lets an external model attach to the engine without disturbing
// its core logic: if present and confident enough, it can override the
// algorithmic score for ranking purposes only — the hard validation gate
// always applies regardless of which scorer produced the winning score.
type Scorer interface {
	Score(ctx context.Context, internal, external *models.Trade) (float64, error)
}

// timeWindow is the maximum |Δt| in hours two candidates may differ by to
// even be considered, per the time window gate in candidate generation.
type timeWindow struct {
	hours float64
}

func (w timeWindow) withinWindow(internal, external *models.Trade) (float64, bool) {
	deltaHours := math.Abs(internal.TradeDate.Sub(external.TradeDate).Hours())
	return deltaHours, deltaHours <= w.hours
}

// score computes the arithmetic mean of the five raw components. Per the
// documented quirk, the instrument-id component's raw score is appended
// un-multiplied (its weight is 1.0, so this makes no numeric difference,
// but the implementation deliberately does NOT apply a uniform
// "* weight" step to every component the way the other four are — see
// DESIGN.md Open Questions), while the remaining four are each
// pre-multiplied by their weight before the mean is taken.
func score(cfg config.MatchingConfig, internal, external *models.Trade, deltaHours float64) float64 {
	instrumentRaw := 0.0
	if internal.InstrumentID == external.InstrumentID {
		instrumentRaw = 1.0
	}

	counterpartyRaw := counterpartySimilarity(internal.Counterparty, external.Counterparty)

	priceTolPct := decimal.NewFromFloat(cfg.PriceTolerancePercent)
	priceDiffPct := decimalutil.PctDiff(internal.Price, external.Price, internal.Price)
	priceRaw := decimalutil.ProximityScore(priceDiffPct, priceTolPct)

	qtyTolPct := decimal.NewFromFloat(cfg.QuantityTolerancePercent)
	qtyDiffPct := decimalutil.PctDiff(internal.Quantity, external.Quantity, internal.Quantity)
	qtyRaw := decimalutil.ProximityScore(qtyDiffPct, qtyTolPct)

	timeRaw := math.Max(0, 1.0-deltaHours/float64(cfg.TimeWindowHours))

	components := []float64{
		instrumentRaw,
		counterpartyRaw * 0.8,
		priceRaw * 0.9,
		qtyRaw * 0.9,
		timeRaw * 0.6,
	}

	sum := 0.0
	for _, c := range components {
		sum += c
	}
	return sum / float64(len(components))
}

// counterpartySimilarity is a normalized edit-distance ratio on
// uppercased strings: 1 - (distance / max(len(a), len(b))).
func counterpartySimilarity(a, b string) float64 {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	similarity := 1.0 - float64(dist)/float64(maxLen)
	if similarity < 0 {
		return 0
	}
	return similarity
}
