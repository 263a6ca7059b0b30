package workflow

import (
	"strings"

	"reconciler/internal/models"
)

// AssignmentKind selects which predicate an AssignmentRule evaluates.
type AssignmentKind string

const (
	KindSeverityCritical  AssignmentKind = "severity_critical"
	KindRootCauseContains AssignmentKind = "root_cause_contains"
	KindCounterpartyEquals AssignmentKind = "counterparty_equals"
	KindDefault           AssignmentKind = "default"
)

// AssignmentRule routes a newly created case to a team. Rules are tried
// in order; the first match wins.
type AssignmentRule struct {
	Name     string
	Kind     AssignmentKind
	Param    string
	AssignTo string
}

// DefaultAssignmentRules mirrors the firm's standard escalation routing:
// critical breaks go straight to senior ops, broker feed issues to the
// broker integration desk, JPMorgan counterparty breaks to the
// relationship specialist, and everything else to general ops.
func DefaultAssignmentRules() []AssignmentRule {
	return []AssignmentRule{
		{Name: "critical-severity", Kind: KindSeverityCritical, AssignTo: "senior-ops-team"},
		{Name: "broker-feed-issue", Kind: KindRootCauseContains, Param: "broker_feed", AssignTo: "broker-ops-team"},
		{Name: "jpmorgan-counterparty", Kind: KindCounterpartyEquals, Param: "JPMORGAN", AssignTo: "jpm-specialist"},
		{Name: "default", Kind: KindDefault, AssignTo: "general-ops-team"},
	}
}

// autoAssign returns the AssignTo of the first rule whose predicate
// matches b/trade, evaluating in list order.
func autoAssign(rules []AssignmentRule, b models.Break, trade *models.Trade) string {
	for _, rule := range rules {
		if matches(rule, b, trade) {
			return rule.AssignTo
		}
	}
	return "general-ops-team"
}

func matches(rule AssignmentRule, b models.Break, trade *models.Trade) bool {
	switch rule.Kind {
	case KindSeverityCritical:
		return b.Severity == models.SeverityCritical
	case KindRootCauseContains:
		return strings.Contains(string(b.RootCauseCategory), rule.Param)
	case KindCounterpartyEquals:
		return trade != nil && trade.Counterparty == rule.Param
	case KindDefault:
		return true
	default:
		return false
	}
}
