// Package errs collects the sentinel and typed errors shared across the
// reconciliation pipeline, so every boundary can errors.Is/errors.As against
// the same taxonomy instead of inventing ad-hoc strings.
package errs

import "fmt"

// Sentinel errors matched with errors.Is.
var (
	// ErrReconciliationAlreadyRun is returned when a non-failed run already
	// exists for a trade date and the caller did not request force-rerun.
	ErrReconciliationAlreadyRun = fmt.Errorf("reconciliation already run for this trade date")

	// ErrCancelled marks a run closed due to cooperative cancellation
	// observed between orchestrator steps.
	ErrCancelled = fmt.Errorf("cancelled")

	// ErrUnparseableDate is returned by the normalizer when every configured
	// date layout fails to parse a raw value.
	ErrUnparseableDate = fmt.Errorf("unable to parse date in any known format")
)

// FeedIOError wraps an adapter I/O failure (connection, file-open, timeout).
// External feed failures carrying this type are recorded on the run and do
// not abort it; a FeedIOError from the internal feed is fatal.
type FeedIOError struct {
	Source string
	Err    error
}

func (e *FeedIOError) Error() string {
	return fmt.Sprintf("feed io error (%s): %v", e.Source, e.Err)
}

func (e *FeedIOError) Unwrap() error { return e.Err }

// ParseWarning records a per-row or per-message normalization failure. It is
// never fatal to the feed that produced it; callers accumulate these on the
// run instead of aborting.
type ParseWarning struct {
	Source string
	Line   int
	Reason string
}

func (w *ParseWarning) Error() string {
	return fmt.Sprintf("parse warning (%s line %d): %s", w.Source, w.Line, w.Reason)
}

// ValidationError marks a canonical trade that fails an invariant (price > 0,
// quantity != 0, settlement_date >= trade_date). No pipeline stage returns
// it; Trade.Validate reports violations as plain strings.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a storage adapter failure. It is fatal to the
// current run; the run is marked failed and the error propagates to the
// caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RuleEvaluationError wraps a panic recovered from an auto-resolver
// predicate. It is logged and treated as a false predicate; evaluation of
// subsequent rules continues.
type RuleEvaluationError struct {
	RuleName string
	Recovered interface{}
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %q panicked during evaluation: %v", e.RuleName, e.Recovered)
}
