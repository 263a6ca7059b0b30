// Package feed adapts heterogeneous trade feeds (an internal database
// query, delimited text files, pipe-delimited tag=value protocol
// messages) into a single canonical stream of models.Trade, normalizing
// every raw payload the same way regardless of where it came from.
package feed

import (
	"context"
	"time"

	"reconciler/internal/errs"
	"reconciler/internal/models"
)

// NormalizeResult is one element of the channel a Source produces: either
// a successfully normalized Trade, or a non-fatal ParseWarning describing
// why a row/message was skipped. Exactly one of the two is set.
type NormalizeResult struct {
	Trade   *models.Trade
	Warning *errs.ParseWarning
}

// Source fetches and normalizes every trade for tradeDate from one feed.
// Adapters are stateless and idempotent with respect to their input: the
// same (tradeDate, sourceTag) must always yield the same sequence, in the
// same order, to preserve run determinism.
type Source interface {
	Fetch(ctx context.Context, tradeDate time.Time, sourceTag string) (<-chan NormalizeResult, error)
}

var _ Source = (*InternalQuery)(nil)
var _ Source = (*Delimited)(nil)
var _ Source = (*TagValue)(nil)
