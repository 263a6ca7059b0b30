package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reconciler/internal/models"
	"reconciler/pkg/clock"
)

// MemoryCollaborator is an in-process reference Collaborator. It keeps
// every case in memory and never talks to a real notification system —
// standing in for the email/ticketing transport in tests and for the
// part of the stack that hasn't been given a production backend yet.
type MemoryCollaborator struct {
	mu    sync.Mutex
	clk   clock.Clock
	rules []AssignmentRule
	cases map[string]*Case
	seq   int
}

// NewMemoryCollaborator builds a collaborator using the given assignment
// rules and clock. Passing nil rules falls back to DefaultAssignmentRules.
func NewMemoryCollaborator(rules []AssignmentRule, clk clock.Clock) *MemoryCollaborator {
	if rules == nil {
		rules = DefaultAssignmentRules()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &MemoryCollaborator{
		clk:   clk,
		rules: rules,
		cases: make(map[string]*Case),
	}
}

var _ Collaborator = (*MemoryCollaborator)(nil)

func (m *MemoryCollaborator) CreateCase(ctx context.Context, b models.Break, trade *models.Trade) (*Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	m.seq++
	c := &Case{
		ID:            fmt.Sprintf("CASE-%s-%04d", now.Format("20060102"), m.seq),
		BreakID:       b.ID,
		Status:        models.BreakStatusAssigned,
		AssignedTo:    autoAssign(m.rules, b, trade),
		CreatedAt:     now,
		SLADeadline:   b.SLADeadline(),
		PriorityScore: b.PriorityScore,
	}
	m.cases[c.ID] = c
	return c, nil
}

func (m *MemoryCollaborator) Escalate(ctx context.Context, caseID, reason, to string) (*Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[caseID]
	if !ok {
		return nil, ErrCaseNotFound
	}
	c.Status = models.BreakStatusEscalated
	c.AssignedTo = to
	c.Escalations = append(c.Escalations, Escalation{
		Reason:      reason,
		EscalatedTo: to,
		EscalatedAt: m.clk.Now(),
	})
	return c, nil
}

func (m *MemoryCollaborator) Resolve(ctx context.Context, caseID string, resolution CaseResolution) (*Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[caseID]
	if !ok {
		return nil, ErrCaseNotFound
	}
	resolution.ResolvedAt = m.clk.Now()
	c.Status = models.BreakStatusResolved
	c.Resolution = &resolution
	return c, nil
}

// CheckSLABreaches scans every non-terminal case for one whose SLA
// deadline has passed as of now, returning them sorted by deadline so the
// most overdue case is first.
func (m *MemoryCollaborator) CheckSLABreaches(ctx context.Context, now time.Time) ([]*Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var breached []*Case
	for _, c := range m.cases {
		if c.IsPastSLA(now) {
			breached = append(breached, c)
		}
	}
	sort.Slice(breached, func(i, j int) bool {
		return breached[i].SLADeadline.Before(breached[j].SLADeadline)
	})
	return breached, nil
}

// AddNote appends an investigation note to an existing case. Not part of
// the Collaborator interface — it's a MemoryCollaborator-specific
// convenience mirroring the original add_investigation_note helper.
func (m *MemoryCollaborator) AddNote(caseID, user, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[caseID]
	if !ok {
		return ErrCaseNotFound
	}
	c.InvestigationNotes = append(c.InvestigationNotes, Note{
		Timestamp: m.clk.Now(),
		User:      user,
		Text:      text,
	})
	return nil
}

// Case returns a copy of the case lookup for read-only inspection, used
// by tests.
func (m *MemoryCollaborator) Case(caseID string) (*Case, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}
