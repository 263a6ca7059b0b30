// Package reporting aggregates the open break population into the
// break report an operator dashboard or a scheduled email digest
// renders: counts by severity and type, the busiest counterparties, an
// age histogram, the highest-priority queue, and any clustered patterns
// among them.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"reconciler/internal/models"
	"reconciler/internal/pattern"
	"reconciler/internal/repository"
)

// Report is the full aggregated view for one point in time. Unlike a
// ReconciliationRun, a Report is never persisted — it's recomputed on
// request from the current state of the breaks table.
type Report struct {
	Period            string                        `json:"period"`
	GeneratedAt       time.Time                     `json:"generated_at"`
	TotalOpenBreaks   int                           `json:"total_open_breaks"`
	BySeverity        map[models.Severity]int       `json:"by_severity"`
	ByType            map[models.BreakType]int      `json:"by_type"`
	ByCounterparty    []repository.CounterpartyCount `json:"by_counterparty"`
	Aging             repository.AgingCounts        `json:"aging_analysis"`
	TopPriorityBreaks []models.Break                `json:"top_priority_breaks"`
	Patterns          []models.Pattern              `json:"patterns"`
}

// Generator computes Report values from the storage layer's aggregate
// queries. A Generator holds no state of its own between calls — every
// Generate invocation is a fresh snapshot.
type Generator struct {
	Breaks *repository.BreakRepository
	Trades *repository.TradeRepository

	// TopCounterparties bounds the by-counterparty breakdown; zero means
	// the default of 10.
	TopCounterparties int
	// TopPriority bounds the top-priority queue; zero means the default
	// of 10.
	TopPriority int
}

// NewGenerator wraps the repository handles a Report needs.
func NewGenerator(breaks *repository.BreakRepository, trades *repository.TradeRepository) *Generator {
	return &Generator{Breaks: breaks, Trades: trades}
}

func (g *Generator) topCounterparties() int {
	if g.TopCounterparties <= 0 {
		return 10
	}
	return g.TopCounterparties
}

func (g *Generator) topPriority() int {
	if g.TopPriority <= 0 {
		return 10
	}
	return g.TopPriority
}

// Generate builds a Report as of now. periodStart/periodEnd only label
// the report's Period field — every aggregate query itself operates on
// the live, unfiltered open-break population, matching the aggregate
// queries the repository layer exposes.
func (g *Generator) Generate(ctx context.Context, periodStart, periodEnd, now time.Time) (*Report, error) {
	bySeverity, err := g.Breaks.CountBySeverity(ctx)
	if err != nil {
		return nil, fmt.Errorf("reporting: count by severity: %w", err)
	}

	byType, err := g.Breaks.CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("reporting: count by type: %w", err)
	}

	byCounterparty, err := g.Breaks.TopCounterpartiesByOpenBreaks(ctx, g.topCounterparties())
	if err != nil {
		return nil, fmt.Errorf("reporting: top counterparties: %w", err)
	}

	aging, err := g.Breaks.AgingBuckets(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("reporting: aging buckets: %w", err)
	}

	all, err := g.Breaks.ListByStatus(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("reporting: listing breaks: %w", err)
	}

	open := make([]models.Break, 0, len(all))
	for _, b := range all {
		if !b.IsTerminal() {
			open = append(open, *b)
		}
	}

	top := append([]models.Break(nil), open...)
	sort.Slice(top, func(i, j int) bool { return top[i].PriorityScore > top[j].PriorityScore })
	if len(top) > g.topPriority() {
		top = top[:g.topPriority()]
	}

	trades, err := g.loadTrades(ctx, open)
	if err != nil {
		return nil, fmt.Errorf("reporting: loading trades for pattern detection: %w", err)
	}

	return &Report{
		Period:            fmt.Sprintf("%s to %s", periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02")),
		GeneratedAt:       now,
		TotalOpenBreaks:   len(open),
		BySeverity:        bySeverity,
		ByType:            byType,
		ByCounterparty:    byCounterparty,
		Aging:             aging,
		TopPriorityBreaks: top,
		Patterns:          pattern.Detect(open, trades),
	}, nil
}

// loadTrades resolves every trade a set of breaks refers to, for the
// pattern detector's feature vectors. A trade that no longer exists (or
// never did, for a malformed row) is skipped rather than failing the
// whole report — pattern.Detect tolerates a nil trade for a given break.
func (g *Generator) loadTrades(ctx context.Context, breaks []models.Break) (map[string]*models.Trade, error) {
	trades := make(map[string]*models.Trade)
	for _, b := range breaks {
		for _, ref := range []string{b.TradeRef, b.MatchedTradeRef} {
			if ref == "" {
				continue
			}
			if _, ok := trades[ref]; ok {
				continue
			}
			t, err := g.Trades.GetByID(ctx, ref)
			if err != nil {
				continue
			}
			trades[ref] = t
		}
	}
	return trades, nil
}
