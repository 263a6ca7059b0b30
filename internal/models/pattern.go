package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pattern is a cluster of related open breaks emitted by the pattern
// detector at the end of a run.
type Pattern struct {
	ID               string          `json:"id"`
	MemberBreakIDs   []string        `json:"member_break_ids"`
	CommonCounterparty string        `json:"common_counterparty"`
	CommonBreakType    BreakType     `json:"common_break_type"`
	CommonRootCause    RootCause     `json:"common_root_cause"`
	MemberCount        int           `json:"member_count"`
	TotalImpact        decimal.Decimal `json:"total_impact"`
	FirstOccurrence    time.Time     `json:"first_occurrence"`
	LastOccurrence     time.Time     `json:"last_occurrence"`
	Severity           Severity      `json:"severity"`
	Recommendation     string        `json:"recommendation"`
}
