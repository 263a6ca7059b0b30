// Package orchestrator drives one end-to-end daily reconciliation run:
// ingest, persist, match, classify, auto-resolve, hand off to workflow,
// detect patterns, and close out the run record.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reconciler/internal/breaks"
	"reconciler/internal/config"
	"reconciler/internal/errs"
	"reconciler/internal/feed"
	"reconciler/internal/matching"
	"reconciler/internal/models"
	"reconciler/internal/pattern"
	"reconciler/internal/repository"
	"reconciler/internal/resolver"
	"reconciler/internal/workflow"
	"reconciler/pkg/clock"
)

// RunOptions controls one invocation of RunDailyReconciliation.
type RunOptions struct {
	// ForceRerun allows a new run to supersede an already-active run for
	// the same trade date instead of returning ReconciliationAlreadyRun.
	ForceRerun bool
}

// Orchestrator wires every pipeline stage together. Fields are set once
// at construction and read-only for the lifetime of the process; nothing
// here is mutated by a running reconciliation beyond the run record the
// caller receives back.
type Orchestrator struct {
	Store             repository.Store
	InternalFeed      feed.Source
	InternalSourceTag string
	ExternalFeeds     map[string]feed.Source

	Engine       *matching.Engine
	Rules        []resolver.Rule
	Aliases      config.AliasTable
	Collaborator workflow.Collaborator

	WorkerPoolSize int
	FeedTimeout    time.Duration

	Clock  clock.Clock
	Logger *zap.Logger
}

func (o *Orchestrator) clock() clock.Clock {
	if o.Clock == nil {
		return clock.Real{}
	}
	return o.Clock
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// RunDailyReconciliation executes the ten-step pipeline for tradeDate. It
// returns the run record regardless of outcome when persistence itself
// has not failed: a failed run is returned with Status=failed and a
// populated ErrorMessage rather than only as a Go error, so a caller can
// always inspect what happened to the stored record.
func (o *Orchestrator) RunDailyReconciliation(ctx context.Context, tradeDate time.Time, opts RunOptions) (*models.ReconciliationRun, error) {
	log := o.logger().With(zap.Time("trade_date", tradeDate))

	// Step 1: guard against re-running an active date, then create the run.
	existing, err := o.Store.RunForTradeDate(ctx, tradeDate)
	if err != nil && !errors.Is(err, repository.ErrRunNotFound) {
		return nil, fmt.Errorf("orchestrator: checking existing run: %w", err)
	}
	if existing != nil && existing.IsActive() {
		if !opts.ForceRerun {
			return nil, errs.ErrReconciliationAlreadyRun
		}
		if err := o.Store.SupersedeRun(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("orchestrator: superseding prior run: %w", err)
		}
	}

	now := o.clock().Now()
	run := &models.ReconciliationRun{
		ID:        uuid.NewString(),
		TradeDate: tradeDate,
		Status:    models.RunStatusRunning,
		StartedAt: now,
	}
	if err := o.Store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("orchestrator: creating run: %w", err)
	}
	log = log.With(zap.String("run_id", run.ID))

	if err := o.runSteps(ctx, run, log); err != nil {
		run.Close(o.clock().Now(), err.Error())
		if uerr := o.Store.UpdateRun(ctx, run); uerr != nil {
			log.Error("failed to persist failed run", zap.Error(uerr))
		}
		return run, err
	}

	run.Close(o.clock().Now(), "")
	if err := o.Store.UpdateRun(ctx, run); err != nil {
		return run, fmt.Errorf("orchestrator: closing run: %w", err)
	}
	return run, nil
}

// runSteps performs steps 2 through 9. Cancellation is observed only at
// the boundary between steps, never preempting one mid-flight.
func (o *Orchestrator) runSteps(ctx context.Context, run *models.ReconciliationRun, log *zap.Logger) error {
	// Step 2: parallel ingestion.
	internal, external, externalErrs, err := o.ingestAll(ctx, run.TradeDate)
	if err != nil {
		return fmt.Errorf("internal feed failed: %w", err)
	}
	for _, ferr := range externalErrs {
		log.Warn("external feed degraded this run", zap.Error(ferr))
	}
	for _, w := range internal.warnings {
		log.Warn("internal feed parse warning", zap.String("reason", w.Reason))
	}
	for _, w := range external.warnings {
		log.Warn("external feed parse warning", zap.String("reason", w.Reason))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 3: persist canonical trades, update counters.
	if err := o.persistTrades(ctx, internal.trades); err != nil {
		return fmt.Errorf("persisting internal trades: %w", err)
	}
	if err := o.persistTrades(ctx, external.trades); err != nil {
		return fmt.Errorf("persisting external trades: %w", err)
	}
	run.InternalCount = len(internal.trades)
	run.ExternalCount = len(external.trades)
	if err := o.Store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("updating run counters after ingest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Steps 4-5: match, then re-inspect matched pairs for field breaks.
	result, err := o.Engine.Match(ctx, internal.trades, external.trades)
	if err != nil {
		return fmt.Errorf("matching engine: %w", err)
	}
	for _, m := range result.Matches {
		if err := o.Store.CommitMatchedPair(ctx, m.Internal, m.External); err != nil {
			return fmt.Errorf("committing matched pair: %w", err)
		}
	}
	run.MatchedCount = len(result.Matches)
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 6: classify every break produced this run.
	trades := tradeLookup(internal.trades, external.trades)
	now := o.clock().Now()
	for i, b := range result.Breaks {
		b.RunID = run.ID
		result.Breaks[i] = breaks.Classify(b, trades[b.TradeRef], trades[b.MatchedTradeRef], now)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 7: auto-resolve what can be, then persist every break.
	resolved, resolveResult := resolver.BatchAutoResolve(o.Rules, result.Breaks, trades, o.Aliases, now, log)
	for i := range resolved {
		if err := o.Store.CreateBreak(ctx, &resolved[i]); err != nil {
			return fmt.Errorf("persisting break: %w", err)
		}
	}
	run.NewBreaksCount = len(resolved)
	run.AutoResolvedBreaks = resolveResult.AutoResolved
	run.Resolutions = resolveResult.Resolutions
	if err := o.Store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("updating run counters after resolve: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 8: hand every unresolved break to the workflow collaborator.
	if o.Collaborator != nil {
		for _, b := range resolved {
			if b.IsTerminal() {
				continue
			}
			if _, err := o.Collaborator.CreateCase(ctx, b, trades[b.TradeRef]); err != nil {
				log.Warn("failed to create workflow case", zap.String("break_id", b.ID), zap.Error(err))
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 9: detect patterns across the full break set.
	run.Patterns = pattern.Detect(resolved, trades)

	return nil
}

func (o *Orchestrator) persistTrades(ctx context.Context, trades []*models.Trade) error {
	for _, t := range trades {
		if err := o.Store.CreateTrade(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func tradeLookup(sets ...[]*models.Trade) map[string]*models.Trade {
	lookup := make(map[string]*models.Trade)
	for _, set := range sets {
		for _, t := range set {
			lookup[t.ID] = t
		}
	}
	return lookup
}
