package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reconciler/internal/errs"
	"reconciler/internal/feed"
	"reconciler/internal/models"
)

// feedResult is what draining one Source's channel to completion yields.
type feedResult struct {
	trades   []*models.Trade
	warnings []*errs.ParseWarning
}

// drain reads src's channel to completion, enforcing a per-feed timeout.
// A context deadline or a fatal open failure surfaces as the returned
// error; individual row failures accumulate as warnings and never abort
// the feed.
func drain(ctx context.Context, src feed.Source, tradeDate time.Time, sourceTag string, timeout time.Duration) (feedResult, error) {
	feedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, err := src.Fetch(feedCtx, tradeDate, sourceTag)
	if err != nil {
		return feedResult{}, err
	}

	var out feedResult
	for r := range ch {
		switch {
		case r.Trade != nil:
			out.trades = append(out.trades, r.Trade)
		case r.Warning != nil:
			out.warnings = append(out.warnings, r.Warning)
		}
	}

	if err := feedCtx.Err(); err != nil {
		return out, &errs.FeedIOError{Source: sourceTag, Err: err}
	}
	return out, nil
}

// ingestAll fetches the internal feed and every external feed
// concurrently. The internal feed runs on its own goroutine; external
// feeds fan out across a bounded worker pool (o.WorkerPoolSize). An
// internal feed failure aborts the whole ingestion step; an external feed
// failure is recorded and the remaining feeds continue.
func (o *Orchestrator) ingestAll(ctx context.Context, tradeDate time.Time) (internal feedResult, external feedResult, externalErrs []error, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := drain(gctx, o.InternalFeed, tradeDate, o.InternalSourceTag, o.FeedTimeout)
		if err != nil {
			return err
		}
		internal = res
		return nil
	})

	var mu sync.Mutex
	extGroup, extCtx := errgroup.WithContext(gctx)
	extGroup.SetLimit(o.poolSize())

	for tag, src := range o.ExternalFeeds {
		tag, src := tag, src
		extGroup.Go(func() error {
			res, ferr := drain(extCtx, src, tradeDate, tag, o.FeedTimeout)
			mu.Lock()
			defer mu.Unlock()
			if ferr != nil {
				externalErrs = append(externalErrs, ferr)
				o.logger().Warn("external feed failed, continuing run", zap.String("feed", tag), zap.Error(ferr))
				return nil
			}
			external.trades = append(external.trades, res.trades...)
			external.warnings = append(external.warnings, res.warnings...)
			return nil
		})
	}

	g.Go(func() error {
		return extGroup.Wait()
	})

	if waitErr := g.Wait(); waitErr != nil {
		return internal, external, externalErrs, waitErr
	}
	return internal, external, externalErrs, nil
}

func (o *Orchestrator) poolSize() int {
	if o.WorkerPoolSize <= 0 {
		return 5
	}
	return o.WorkerPoolSize
}
