// Package workflow defines the external collaborator contract the
// orchestrator hands unresolved breaks to, plus an in-memory reference
// implementation sufficient for tests — the real notification/ticketing
// transport is an out-of-scope external system.
package workflow

import (
	"context"
	"errors"
	"time"

	"reconciler/internal/models"
)

// ErrCaseNotFound is returned by Escalate/Resolve when the case id is
// unknown to the collaborator.
var ErrCaseNotFound = errors.New("workflow: case not found")

// Case is one break routed into the investigation workflow.
type Case struct {
	ID                string
	BreakID           string
	Status            models.BreakStatus
	AssignedTo        string
	CreatedAt         time.Time
	SLADeadline       time.Time
	PriorityScore     float64
	InvestigationNotes []Note
	Escalations       []Escalation
	Resolution        *CaseResolution
}

// Note is a free-text investigation entry attached to a case.
type Note struct {
	Timestamp time.Time
	User      string
	Text      string
}

// Escalation records one escalation event on a case.
type Escalation struct {
	Reason       string
	EscalatedTo  string
	EscalatedAt  time.Time
}

// CaseResolution is the terminal disposition of a case.
type CaseResolution struct {
	Type       string
	Notes      string
	ResolvedBy string
	ResolvedAt time.Time
}

// IsPastSLA reports whether c is still open and now is past its SLA
// deadline.
func (c *Case) IsPastSLA(now time.Time) bool {
	return !c.isTerminal() && now.After(c.SLADeadline)
}

func (c *Case) isTerminal() bool {
	return c.Status == models.BreakStatusResolved || c.Status == models.BreakStatusClosed
}

// Collaborator is the external workflow/notification system contract.
// Implementations own notification delivery; the core only ever talks to
// this interface.
type Collaborator interface {
	CreateCase(ctx context.Context, b models.Break, trade *models.Trade) (*Case, error)
	Escalate(ctx context.Context, caseID, reason, to string) (*Case, error)
	Resolve(ctx context.Context, caseID string, resolution CaseResolution) (*Case, error)
	CheckSLABreaches(ctx context.Context, now time.Time) ([]*Case, error)
}
