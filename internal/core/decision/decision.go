// Package decision owns the candidate lifecycle: the derived accept/reject
// classification and the operator override channel that always wins over it.
package decision

import (
	"context"
	"fmt"

	"github.com/schemamesh/ontolink/internal/core/model"
)

// Status is the effective classification of a candidate. Derived on read,
// never stored; only the evaluation and the manual override persist.
type Status string

const (
	StatusUnreviewed  Status = "unreviewed"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusNeedsReview Status = "needs_review"
)

// Effective projects a candidate onto its status. Manual overrides dominate
// unconditionally; otherwise confidence is compared inclusively against both
// thresholds, and anything between them needs a human.
func Effective(c model.RelationshipCandidate, acceptance, rejection float64) Status {
	switch c.Override {
	case model.OverrideAccepted:
		return StatusAccepted
	case model.OverrideRejected:
		return StatusRejected
	}

	if c.Evaluation == nil {
		return StatusUnreviewed
	}

	conf := c.Evaluation.RelationConfidence
	switch {
	case conf >= acceptance:
		return StatusAccepted
	case conf <= rejection:
		return StatusRejected
	default:
		return StatusNeedsReview
	}
}

// OverrideStore persists the manual override field and nothing else. The
// actions below are the only writers of that field in the whole system.
type OverrideStore interface {
	SetOverride(ctx context.Context, id string, override model.ManualOverride) error
	GetCandidate(ctx context.Context, id string) (model.RelationshipCandidate, error)
}

type Actions struct {
	Store OverrideStore
}

func NewActions(store OverrideStore) *Actions {
	return &Actions{Store: store}
}

// Accept pins the candidate accepted regardless of any past or future
// evaluation. Idempotent.
func (a *Actions) Accept(ctx context.Context, id string) error {
	return a.Store.SetOverride(ctx, id, model.OverrideAccepted)
}

// Reject pins the candidate rejected. Idempotent.
func (a *Actions) Reject(ctx context.Context, id string) error {
	return a.Store.SetOverride(ctx, id, model.OverrideRejected)
}

// Unreject clears a manual rejection, returning the candidate to whatever
// the automated evaluation says. Refuses to clear a manual accept, which has
// its own opposing action.
func (a *Actions) Unreject(ctx context.Context, id string) error {
	c, err := a.Store.GetCandidate(ctx, id)
	if err != nil {
		return err
	}
	if c.Override == model.OverrideAccepted {
		return fmt.Errorf("candidate %s is manually accepted; use reject to flip it", id)
	}
	return a.Store.SetOverride(ctx, id, model.OverrideNone)
}
