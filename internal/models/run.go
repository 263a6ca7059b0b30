package models

import "time"

// RunStatus is the lifecycle state of a ReconciliationRun.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	// RunStatusSuperseded is not a real terminal state the orchestrator
	// assigns during its own run — it marks a prior completed run when a
	// force-rerun supersedes it, so callers can tell which run is current
	// for a trade_date without deleting history.
	RunStatusSuperseded RunStatus = "superseded"
)

// ReconciliationRun is one execution of the pipeline for a given trade
// date. Counters are written progressively so an operator can observe
// progress without waiting for the run to finish.
type ReconciliationRun struct {
	ID                 string        `json:"id" db:"id"`
	TradeDate          time.Time     `json:"trade_date" db:"trade_date"`
	Status             RunStatus     `json:"status" db:"status"`
	InternalCount      int           `json:"internal_count" db:"internal_count"`
	ExternalCount      int           `json:"external_count" db:"external_count"`
	MatchedCount       int           `json:"matched_count" db:"matched_count"`
	NewBreaksCount     int           `json:"new_breaks_count" db:"new_breaks_count"`
	AutoResolvedBreaks int           `json:"auto_resolved_breaks" db:"auto_resolved_breaks"`
	Duration           time.Duration `json:"duration" db:"duration"`
	ErrorMessage       string        `json:"error_message,omitempty" db:"error_message"`
	StartedAt          time.Time     `json:"started_at" db:"started_at"`
	FinishedAt         *time.Time    `json:"finished_at,omitempty" db:"finished_at"`
	Patterns           []Pattern     `json:"patterns,omitempty" db:"-"`
	Resolutions        []Resolution  `json:"resolutions,omitempty" db:"-"`
}

// Resolution is one fired auto-resolver rule, appended to the run's
// resolutions list.
type Resolution struct {
	BreakID   string    `json:"break_id"`
	RuleName  string    `json:"rule_name"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Close marks the run completed (or failed, if errMsg is non-empty) and
// fills in Duration/FinishedAt from the injected clock instant.
func (r *ReconciliationRun) Close(finishedAt time.Time, errMsg string) {
	r.FinishedAt = &finishedAt
	r.Duration = finishedAt.Sub(r.StartedAt)
	if errMsg != "" {
		r.Status = RunStatusFailed
		r.ErrorMessage = errMsg
		return
	}
	r.Status = RunStatusCompleted
}

// IsActive reports whether r counts as "a non-failed run" for the purpose
// of the ReconciliationAlreadyRun guard — running or completed runs block
// a second attempt on the same trade_date unless force_rerun is set.
func (r *ReconciliationRun) IsActive() bool {
	return r.Status == RunStatusRunning || r.Status == RunStatusCompleted
}
