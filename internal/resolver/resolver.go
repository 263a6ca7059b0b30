package resolver

import (
	"time"

	"go.uber.org/zap"

	"reconciler/internal/config"
	"reconciler/internal/errs"
	"reconciler/internal/models"
)

// Result is the {total, auto_resolved, failed, resolutions[]} shape a
// batch call returns.
type Result struct {
	Total        int
	AutoResolved int
	Failed       int
	Resolutions  []models.Resolution
}

// BatchAutoResolve evaluates rules, in order, against every break in
// candidates whose AutoResolvable flag is set. trades maps a trade id to
// its canonical record, used to resolve a break's TradeRef/MatchedTradeRef
// into the context a predicate needs. The returned slice mirrors
// candidates positionally, with fired breaks marked resolved.
func BatchAutoResolve(rules []Rule, candidates []models.Break, trades map[string]*models.Trade, aliases config.AliasTable, now time.Time, logger *zap.Logger) ([]models.Break, Result) {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make([]models.Break, len(candidates))
	result := Result{Total: len(candidates)}

	for i, b := range candidates {
		out[i] = b
		if !b.AutoResolvable {
			continue
		}

		internal := trades[b.TradeRef]
		external := trades[b.MatchedTradeRef]

		rule, fired := fireFirst(rules, out[i], internal, external, aliases, logger)
		if !fired {
			result.Failed++
			continue
		}

		out[i].MarkResolved(models.BreakStatusResolved, rule.Reason, now)
		result.AutoResolved++
		result.Resolutions = append(result.Resolutions, models.Resolution{
			BreakID:   out[i].ID,
			RuleName:  rule.Name,
			Action:    string(rule.Action),
			Reason:    rule.Reason,
			Timestamp: now,
		})
	}

	return out, result
}

// fireFirst returns the first rule whose predicate returns true. A
// panicking predicate is recorded as a RuleEvaluationError, logged, and
// treated as false — evaluation continues with the next rule.
func fireFirst(rules []Rule, b models.Break, internal, external *models.Trade, aliases config.AliasTable, logger *zap.Logger) (Rule, bool) {
	for _, rule := range rules {
		if safeEvaluate(rule, b, internal, external, aliases, logger) {
			return rule, true
		}
	}
	return Rule{}, false
}

func safeEvaluate(rule Rule, b models.Break, internal, external *models.Trade, aliases config.AliasTable, logger *zap.Logger) (fired bool) {
	defer func() {
		if r := recover(); r != nil {
			err := &errs.RuleEvaluationError{RuleName: rule.Name, Recovered: r}
			logger.Warn("auto-resolver rule panicked", zap.String("break_id", b.ID), zap.Error(err))
			fired = false
		}
	}()
	return evaluate(rule, b, internal, external, aliases)
}
