package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reconciler/internal/config"
	"reconciler/internal/errs"
	"reconciler/internal/feed"
	"reconciler/internal/matching"
	"reconciler/internal/models"
	"reconciler/internal/repository"
	"reconciler/internal/resolver"
	"reconciler/internal/workflow"
	"reconciler/pkg/clock"
)

// fakeFeed is a canned Source: it replays a fixed slice of trades (or
// fails outright) regardless of the requested trade date.
type fakeFeed struct {
	trades  []*models.Trade
	openErr error
}

func (f *fakeFeed) Fetch(ctx context.Context, tradeDate time.Time, sourceTag string) (<-chan feed.NormalizeResult, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	out := make(chan feed.NormalizeResult, len(f.trades))
	for _, t := range f.trades {
		out <- feed.NormalizeResult{Trade: t}
	}
	close(out)
	return out, nil
}

// fakeStore is an in-memory repository.Store double. It is intentionally
// minimal: only the bookkeeping the orchestrator's own steps touch.
type fakeStore struct {
	mu sync.Mutex

	runs       map[string]*models.ReconciliationRun
	runsByDate map[string]string // date key -> run id, latest wins
	trades     map[string]*models.Trade
	breaksByID map[string]*models.Break

	commitPairCalls int
	commitPairErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:       make(map[string]*models.ReconciliationRun),
		runsByDate: make(map[string]string),
		trades:     make(map[string]*models.Trade),
		breaksByID: make(map[string]*models.Break),
	}
}

func dateKey(t time.Time) string { return t.Format("2006-01-02") }

func (s *fakeStore) CreateRun(ctx context.Context, run *models.ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	s.runsByDate[dateKey(run.TradeDate)] = run.ID
	return nil
}

func (s *fakeStore) UpdateRun(ctx context.Context, run *models.ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *fakeStore) RunForTradeDate(ctx context.Context, tradeDate time.Time) (*models.ReconciliationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.runsByDate[dateKey(tradeDate)]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	cp := *s.runs[id]
	return &cp, nil
}

func (s *fakeStore) SupersedeRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return repository.ErrRunNotFound
	}
	run.Status = models.RunStatusSuperseded
	return nil
}

func (s *fakeStore) CreateTrade(ctx context.Context, t *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[t.ID] = t
	return nil
}

func (s *fakeStore) TradesByDateAndSource(ctx context.Context, tradeDate time.Time, source models.Source) ([]*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Trade
	for _, t := range s.trades {
		if t.Source == source {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateBreak(ctx context.Context, b *models.Break) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.breaksByID[b.ID] = &cp
	return nil
}

func (s *fakeStore) BreaksByStatus(ctx context.Context, status models.BreakStatus) ([]*models.Break, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Break
	for _, b := range s.breaksByID {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) ResolveBreak(ctx context.Context, id string, status models.BreakStatus, note string, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breaksByID[id]
	if !ok {
		return repository.ErrBreakNotFound
	}
	b.MarkResolved(status, note, resolvedAt)
	return nil
}

func (s *fakeStore) CommitMatchedPair(ctx context.Context, internal, external *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitPairCalls++
	if s.commitPairErr != nil {
		return s.commitPairErr
	}
	return nil
}

func (s *fakeStore) Breaks() *repository.BreakRepository { return nil }

var _ repository.Store = (*fakeStore)(nil)

func testTrade(id, tradeID, instrument, counterparty string, qty, price string, tradeDate time.Time, source models.Source) *models.Trade {
	return &models.Trade{
		ID:             id,
		TradeID:        tradeID,
		Source:         source,
		TradeDate:      tradeDate,
		SettlementDate: tradeDate.AddDate(0, 0, 2),
		InstrumentID:   instrument,
		Quantity:       decimal.RequireFromString(qty),
		Price:          decimal.RequireFromString(price),
		Currency:       "USD",
		Counterparty:   counterparty,
		Status:         models.TradeStatusUnmatched,
	}
}

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		PriceTolerancePercent:    0.01,
		PriceToleranceAbsolute:   0.01,
		QuantityTolerancePercent: 0.001,
		TimeWindowHours:          24,
		MinMatchScore:            0.5,
		MLMinConfidence:          0.9,
	}
}

func newTestOrchestrator(store repository.Store, internalFeed, externalFeed feed.Source, now time.Time) *Orchestrator {
	return &Orchestrator{
		Store:             store,
		InternalFeed:      internalFeed,
		InternalSourceTag: "internal",
		ExternalFeeds:     map[string]feed.Source{"broker-a": externalFeed},
		Engine:            matching.NewEngine(testMatchingConfig(), nil),
		Rules:             resolver.DefaultRules(),
		Aliases:           config.AliasTable{},
		Collaborator:      workflow.NewMemoryCollaborator(nil, clock.Fixed{At: now}),
		WorkerPoolSize:    2,
		FeedTimeout:       5 * time.Second,
		Clock:             clock.Fixed{At: now},
	}
}

func TestRunDailyReconciliationHappyPath(t *testing.T) {
	tradeDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	internal := testTrade("int-1", "T1", "ABC", "JPMORGAN CHASE", "100", "10.00", tradeDate, models.SourceInternal)
	external := testTrade("ext-1", "T1", "ABC", "JPMORGAN CHASE", "100", "10.00", tradeDate, models.Source("broker-a"))

	store := newFakeStore()
	o := newTestOrchestrator(store,
		&fakeFeed{trades: []*models.Trade{internal}},
		&fakeFeed{trades: []*models.Trade{external}},
		now,
	)

	run, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{})
	if err != nil {
		t.Fatalf("RunDailyReconciliation() error = %v", err)
	}

	if run.Status != models.RunStatusCompleted {
		t.Errorf("Status = %v, want completed", run.Status)
	}
	if run.InternalCount != 1 || run.ExternalCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", run.InternalCount, run.ExternalCount)
	}
	if run.MatchedCount != 1 {
		t.Errorf("MatchedCount = %d, want 1", run.MatchedCount)
	}
	if run.NewBreaksCount != 0 {
		t.Errorf("NewBreaksCount = %d, want 0 for an identical pair", run.NewBreaksCount)
	}
	if store.commitPairCalls != 1 {
		t.Errorf("CommitMatchedPair called %d times, want 1", store.commitPairCalls)
	}
	if len(store.trades) != 2 {
		t.Errorf("persisted %d trades, want 2", len(store.trades))
	}
}

func TestRunDailyReconciliationProducesBreakForMissingExternalTrade(t *testing.T) {
	tradeDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	internal := testTrade("int-1", "T1", "ABC", "JPMORGAN CHASE", "100", "10.00", tradeDate, models.SourceInternal)

	store := newFakeStore()
	o := newTestOrchestrator(store,
		&fakeFeed{trades: []*models.Trade{internal}},
		&fakeFeed{},
		now,
	)

	run, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{})
	if err != nil {
		t.Fatalf("RunDailyReconciliation() error = %v", err)
	}

	if run.NewBreaksCount != 1 {
		t.Fatalf("NewBreaksCount = %d, want 1", run.NewBreaksCount)
	}
	if len(store.breaksByID) != 1 {
		t.Fatalf("persisted %d breaks, want 1", len(store.breaksByID))
	}
	for _, b := range store.breaksByID {
		if b.BreakType != models.BreakTypeMissingExternalTrade {
			t.Errorf("BreakType = %v, want MISSING_EXTERNAL_TRADE", b.BreakType)
		}
	}
}

func TestRunDailyReconciliationRejectsSecondRunForSameDateWithoutForce(t *testing.T) {
	tradeDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	o := newTestOrchestrator(store, &fakeFeed{}, &fakeFeed{}, now)

	if _, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{}); err != nil {
		t.Fatalf("first run: error = %v", err)
	}

	_, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{})
	if !errors.Is(err, errs.ErrReconciliationAlreadyRun) {
		t.Errorf("second run error = %v, want ErrReconciliationAlreadyRun", err)
	}
}

func TestRunDailyReconciliationForceRerunSupersedesPriorRun(t *testing.T) {
	tradeDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	o := newTestOrchestrator(store, &fakeFeed{}, &fakeFeed{}, now)

	first, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{})
	if err != nil {
		t.Fatalf("first run: error = %v", err)
	}

	second, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{ForceRerun: true})
	if err != nil {
		t.Fatalf("forced rerun: error = %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("forced rerun should create a new run, not reuse the old id")
	}

	stored, _ := store.runs[first.ID], true
	if stored.Status != models.RunStatusSuperseded {
		t.Errorf("prior run Status = %v, want superseded", stored.Status)
	}
}

func TestRunDailyReconciliationInternalFeedFailureIsFatal(t *testing.T) {
	tradeDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	o := newTestOrchestrator(store, &fakeFeed{openErr: errors.New("connection refused")}, &fakeFeed{}, now)

	run, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{})
	if err == nil {
		t.Fatal("expected an error when the internal feed fails to open")
	}
	if run.Status != models.RunStatusFailed {
		t.Errorf("Status = %v, want failed", run.Status)
	}
	if run.ErrorMessage == "" {
		t.Error("ErrorMessage should be populated on a failed run")
	}
}

func TestRunDailyReconciliationExternalFeedFailureIsNonFatal(t *testing.T) {
	tradeDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	internal := testTrade("int-1", "T1", "ABC", "JPMORGAN CHASE", "100", "10.00", tradeDate, models.SourceInternal)

	store := newFakeStore()
	o := newTestOrchestrator(store,
		&fakeFeed{trades: []*models.Trade{internal}},
		&fakeFeed{openErr: errors.New("broker feed unreachable")},
		now,
	)

	run, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{})
	if err != nil {
		t.Fatalf("RunDailyReconciliation() error = %v, want a degraded but successful run", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("Status = %v, want completed despite the external feed failure", run.Status)
	}
	if run.ExternalCount != 0 {
		t.Errorf("ExternalCount = %d, want 0", run.ExternalCount)
	}
	if run.NewBreaksCount != 1 {
		t.Errorf("NewBreaksCount = %d, want 1 missing-external break for the orphaned internal trade", run.NewBreaksCount)
	}
}

func TestRunDailyReconciliationCreatesWorkflowCaseForUnresolvedBreak(t *testing.T) {
	tradeDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	internal := testTrade("int-1", "T1", "ABC", "ACME BROKERAGE", "100", "10.00", tradeDate, models.SourceInternal)

	store := newFakeStore()
	collaborator := workflow.NewMemoryCollaborator(nil, clock.Fixed{At: now})
	o := newTestOrchestrator(store, &fakeFeed{trades: []*models.Trade{internal}}, &fakeFeed{}, now)
	o.Collaborator = collaborator

	if _, err := o.RunDailyReconciliation(context.Background(), tradeDate, RunOptions{}); err != nil {
		t.Fatalf("RunDailyReconciliation() error = %v", err)
	}

	farFuture := now.AddDate(10, 0, 0)
	cases, err := collaborator.CheckSLABreaches(context.Background(), farFuture)
	if err != nil {
		t.Fatalf("CheckSLABreaches() error = %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("got %d open cases, want 1", len(cases))
	}

	var persistedBreakID string
	for id := range store.breaksByID {
		persistedBreakID = id
	}
	if cases[0].BreakID != persistedBreakID {
		t.Errorf("case BreakID = %q, want %q", cases[0].BreakID, persistedBreakID)
	}
}
