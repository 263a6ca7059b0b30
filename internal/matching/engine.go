// Package matching holds the per-run lookup index, candidate generation,
// scoring, hard validation gate, and greedy pairing discipline that turn
// two sequences of canonical trades into matches and missing-side
// breaks.
package matching

import (
	"context"
	"sort"

	"reconciler/internal/config"
	"reconciler/internal/models"
)

// Match is one accepted pairing between an internal and an external
// trade.
type Match struct {
	Internal *models.Trade
	External *models.Trade
	Score    float64
	Method   string
}

const (
	MethodAlgorithmic = "ALGORITHMIC"
	MethodML          = "ML"
)

// Result is the engine's output for one run: accepted matches and every
// raw break produced either by a failed validation gate (missing-side)
// or by re-inspecting an accepted pair (intra-pair field mismatches).
type Result struct {
	Matches []Match
	Breaks  []models.Break
}

// Engine runs one match invocation. It is stateless across calls to
// Match — the lookup index and matched-id set it builds are local to a
// single invocation and are never shared across runs.
type Engine struct {
	Config         config.MatchingConfig
	ExternalScorer Scorer
}

// NewEngine constructs an Engine. scorer may be nil — the engine then
// relies solely on the algorithmic score.
func NewEngine(cfg config.MatchingConfig, scorer Scorer) *Engine {
	return &Engine{Config: cfg, ExternalScorer: scorer}
}

// Match runs the full matching pipeline for one trade date: internal
// trades are processed in input order, and a chosen external trade is
// marked matched immediately — the engine performs no global assignment
// optimization, by design, so that determinism and a per-trade audit
// trail are preserved.
func (e *Engine) Match(ctx context.Context, internal, external []*models.Trade) (Result, error) {
	idx := buildIndex(external)
	matchedExternal := make(map[*models.Trade]bool)
	window := timeWindow{hours: float64(e.Config.TimeWindowHours)}

	var result Result

	for _, in := range internal {
		candidates := idx.candidates(in, matchedExternal)

		best, bestScore, bestMethod, found := e.selectBest(ctx, window, in, candidates)

		if !found || !passesGate(e.Config, bestScore, in, best) {
			result.Breaks = append(result.Breaks, missingBreak(models.BreakTypeMissingExternalTrade, in))
			continue
		}

		matchedExternal[best] = true
		e.applyMatchStatus(in, best)
		result.Matches = append(result.Matches, Match{Internal: in, External: best, Score: bestScore, Method: bestMethod})
		result.Breaks = append(result.Breaks, fieldBreaks(e.Config, in, best)...)
	}

	for _, ex := range external {
		if !matchedExternal[ex] {
			result.Breaks = append(result.Breaks, missingBreak(models.BreakTypeMissingInternalTrade, ex))
		}
	}

	return result, ctx.Err()
}

// selectBest picks the highest-scoring candidate within the time window,
// breaking ties by smaller time delta, then smaller price delta, then
// lexicographically smaller external trade_id.
func (e *Engine) selectBest(ctx context.Context, window timeWindow, in *models.Trade, candidates []*models.Trade) (*models.Trade, float64, string, bool) {
	type scored struct {
		trade      *models.Trade
		score      float64
		method     string
		deltaHours float64
	}

	var pool []scored
	for _, c := range candidates {
		deltaHours, ok := window.withinWindow(in, c)
		if !ok {
			continue
		}

		s := score(e.Config, in, c, deltaHours)
		method := MethodAlgorithmic

		if e.ExternalScorer != nil {
			if mlScore, err := e.ExternalScorer.Score(ctx, in, c); err == nil && mlScore >= e.Config.MLMinConfidence {
				s = mlScore
				method = MethodML
			}
		}

		pool = append(pool, scored{trade: c, score: s, method: method, deltaHours: deltaHours})
	}

	if len(pool) == 0 {
		return nil, 0, "", false
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		if pool[i].deltaHours != pool[j].deltaHours {
			return pool[i].deltaHours < pool[j].deltaHours
		}
		priceDeltaI := in.Price.Sub(pool[i].trade.Price).Abs()
		priceDeltaJ := in.Price.Sub(pool[j].trade.Price).Abs()
		if !priceDeltaI.Equal(priceDeltaJ) {
			return priceDeltaI.LessThan(priceDeltaJ)
		}
		return pool[i].trade.TradeID < pool[j].trade.TradeID
	})

	best := pool[0]
	return best.trade, best.score, best.method, true
}

// applyMatchStatus sets the lifecycle fields the data model requires of
// an accepted pair: both sides matched, with symmetric cross-references.
func (e *Engine) applyMatchStatus(internal, external *models.Trade) {
	internal.Status = models.TradeStatusMatched
	external.Status = models.TradeStatusMatched
	internal.MatchedTradeID = external.ID
	external.MatchedTradeID = internal.ID
}

func missingBreak(breakType models.BreakType, t *models.Trade) models.Break {
	t.Status = models.TradeStatusBreak
	return models.Break{
		BreakType:     breakType,
		TradeRef:      t.ID,
		ExpectedValue: t.Price,
		ActualValue:   t.Price,
	}
}
