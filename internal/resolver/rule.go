// Package resolver evaluates declarative rules against classified breaks
// and marks the ones a rule fires on as resolved. Rules are data, not
// closures over external state — the evaluator is a single pure switch
// over the rule's kind, so a rule set can be serialized, reviewed, and
// unit-tested without touching Go code.
package resolver

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"reconciler/internal/config"
	"reconciler/internal/models"
)

// Action is the side effect a fired rule requests.
type Action string

const (
	ActionAcceptExternal Action = "accept-external"
	ActionAcceptInternal Action = "accept-internal"
	ActionUpdateMapping  Action = "update-mapping"
	ActionAmend          Action = "amend"
)

// Kind selects which pure predicate a Rule evaluates against.
type Kind string

const (
	KindSettlementDateWithinDays Kind = "settlement_date_within_days"
	KindPriceDiffAbsolute        Kind = "price_diff_absolute"
	KindQuantityDiffAbsolute     Kind = "quantity_diff_absolute"
	KindCounterpartyAlias        Kind = "counterparty_alias"
)

// Rule is a tagged variant: Kind selects the predicate, Threshold carries
// its one numeric parameter (ignored by kinds that don't need one), and
// Action/Reason describe what firing means.
type Rule struct {
	Name      string
	Kind      Kind
	Threshold decimal.Decimal
	Action    Action
	Reason    string
}

// DefaultRules returns the four required built-in rules, in firing
// order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "settlement_date_within_one_day",
			Kind:      KindSettlementDateWithinDays,
			Threshold: decimal.NewFromInt(1),
			Action:    ActionAcceptExternal,
			Reason:    "settlement date differs by no more than one day",
		},
		{
			Name:      "price_diff_negligible",
			Kind:      KindPriceDiffAbsolute,
			Threshold: decimal.NewFromFloat(0.01),
			Action:    ActionAcceptExternal,
			Reason:    "price difference within 0.01 absolute tolerance",
		},
		{
			Name:      "quantity_diff_negligible",
			Kind:      KindQuantityDiffAbsolute,
			Threshold: decimal.NewFromFloat(0.01),
			Action:    ActionAcceptInternal,
			Reason:    "quantity difference below 0.01",
		},
		{
			Name:   "counterparty_known_alias",
			Kind:   KindCounterpartyAlias,
			Action: ActionUpdateMapping,
			Reason: "counterparty names are known aliases",
		},
	}
}

// evaluate is the pure predicate evaluator. It panics on an unrecognized
// kind or on missing trade context a kind requires — callers (the batch
// resolver) run it under recover so a malformed rule degrades to "did not
// fire" rather than aborting the batch.
func evaluate(rule Rule, b models.Break, internal, external *models.Trade, aliases config.AliasTable) bool {
	switch rule.Kind {
	case KindSettlementDateWithinDays:
		if b.BreakType != models.BreakTypeSettlementDateMismatch {
			return false
		}
		delta := internal.SettlementDate.Sub(external.SettlementDate)
		if delta < 0 {
			delta = -delta
		}
		maxDelta := time.Duration(rule.Threshold.IntPart()) * 24 * time.Hour
		return delta <= maxDelta
	case KindPriceDiffAbsolute:
		return b.Difference.Abs().LessThanOrEqual(rule.Threshold)
	case KindQuantityDiffAbsolute:
		return b.Difference.Abs().LessThan(rule.Threshold)
	case KindCounterpartyAlias:
		return aliases.Aliases(internal.Counterparty, external.Counterparty)
	default:
		panic(fmt.Sprintf("resolver: unrecognized rule kind %q", rule.Kind))
	}
}
