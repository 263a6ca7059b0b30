// Package decimalutil holds the tolerance and proximity arithmetic shared by
// the matching engine and the break classifier. Everything here operates on
// shopspring/decimal.Decimal rather than float64, because the domain is
// monetary: binary floating point drift is exactly the kind of discrepancy
// the reconciliation engine exists to catch, so it must not introduce its own.
package decimalutil

import "github.com/shopspring/decimal"

// PctDiff returns |a-b| / |base|, with the "zero denominator is an infinite
// delta" convention spelled out in SPEC_FULL.md: a zero base can never
// satisfy a percentage tolerance, so callers get a value guaranteed to fail
// any realistic tolerance gate instead of propagating a division by zero.
func PctDiff(a, b, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.NewFromInt(1 << 30)
	}
	return a.Sub(b).Abs().Div(base.Abs())
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Abs()
}

// WithinPctOrAbs reports whether a and b are within pctTol of base
// (percentage) or within absTol (absolute) — the OR-gate used by the price
// tolerance check in the matching engine's validation step.
func WithinPctOrAbs(a, b, base, pctTol, absTol decimal.Decimal) bool {
	if !PctDiff(a, b, base).GreaterThan(pctTol) {
		return true
	}
	return !AbsDiff(a, b).GreaterThan(absTol)
}

// WithinPct reports whether a and b are within pctTol of base (percentage
// only) — used by the quantity tolerance check, which has no absolute
// fallback per spec.md §4.2.
func WithinPct(a, b, base, pctTol decimal.Decimal) bool {
	return !PctDiff(a, b, base).GreaterThan(pctTol)
}

// ProximityScore implements the "1 − (diff_pct / tol_pct), clamped to [0,1],
// 0 if diff_pct > tol" raw score shared by the price and quantity scoring
// components in the matching engine.
func ProximityScore(diffPct, tolPct decimal.Decimal) float64 {
	if tolPct.IsZero() || diffPct.GreaterThan(tolPct) {
		return 0
	}
	ratio := diffPct.Div(tolPct)
	score := decimal.NewFromInt(1).Sub(ratio)
	f, _ := score.Float64()
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
