// Package syncer projects accepted candidates into the data graph as
// materialized edges, and tears those edges down again when a candidate
// stops being accepted.
package syncer

import (
	"context"
	"log"

	"github.com/schemamesh/ontolink/internal/core/decision"
	"github.com/schemamesh/ontolink/internal/core/match"
	"github.com/schemamesh/ontolink/internal/core/model"
)

type Store interface {
	ListInstances(ctx context.Context, typeName, property string, limit int) ([]model.InstanceValue, error)
	MergeAppliedEdge(ctx context.Context, candidateID, sourceUUID, targetUUID string) (bool, error)
	DeleteAppliedEdges(ctx context.Context, candidateID string) error
	SetApplied(ctx context.Context, id string, applied bool) error
	ListAppliedCandidateIDs(ctx context.Context) ([]string, error)
}

type Syncer struct {
	Store         Store
	Acceptance    float64
	Rejection     float64
	InstanceLimit int
}

func NewSyncer(store Store, acceptance, rejection float64, instanceLimit int) *Syncer {
	return &Syncer{
		Store:         store,
		Acceptance:    acceptance,
		Rejection:     rejection,
		InstanceLimit: instanceLimit,
	}
}

// Sync walks the candidate set once: accepted candidates get their instance
// pairs materialized (MERGE, so re-runs only add edges for newly ingested
// instances), rejected-but-applied candidates get their edges removed.
// Returns the number of edges created. Per-candidate failures are logged and
// skipped so one bad candidate cannot starve the rest.
func (s *Syncer) Sync(ctx context.Context, cands []model.RelationshipCandidate, kindOf func(model.RelationshipCandidate) model.PropertyKind) (int, error) {
	created := 0

	for _, c := range cands {
		switch decision.Effective(c, s.Acceptance, s.Rejection) {
		case decision.StatusAccepted:
			n, err := s.applyOne(ctx, c, kindOf(c))
			if err != nil {
				log.Printf("Sync: failed to apply candidate %s: %v", c.ID, err)
				continue
			}
			created += n

		case decision.StatusRejected:
			if !c.IsApplied {
				continue
			}
			if err := s.Store.DeleteAppliedEdges(ctx, c.ID); err != nil {
				log.Printf("Sync: failed to remove edges for rejected candidate %s: %v", c.ID, err)
				continue
			}
			if err := s.Store.SetApplied(ctx, c.ID, false); err != nil {
				log.Printf("Sync: failed to clear applied flag for %s: %v", c.ID, err)
			}
		}
	}

	return created, nil
}

// applyOne enumerates compatible instance pairs with the live data, not a
// cached sample, and merges an edge per pair.
func (s *Syncer) applyOne(ctx context.Context, c model.RelationshipCandidate, kind model.PropertyKind) (int, error) {
	sourceVals, err := s.Store.ListInstances(ctx, c.Source.TypeName, c.Source.Property, s.InstanceLimit)
	if err != nil {
		return 0, err
	}
	targetVals, err := s.Store.ListInstances(ctx, c.Target.TypeName, c.Target.Property, s.InstanceLimit)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, sv := range sourceVals {
		for _, tv := range targetVals {
			if sv.UUID == tv.UUID || !match.Compatible(kind, sv.Value, tv.Value) {
				continue
			}
			isNew, err := s.Store.MergeAppliedEdge(ctx, c.ID, sv.UUID, tv.UUID)
			if err != nil {
				return created, err
			}
			if isNew {
				created++
			}
		}
	}

	if !c.IsApplied {
		if err := s.Store.SetApplied(ctx, c.ID, true); err != nil {
			return created, err
		}
	}
	return created, nil
}

// CleanupOrphans removes applied edges whose owning candidate is gone or
// archived. Opportunistic: failures are logged, never fatal.
func (s *Syncer) CleanupOrphans(ctx context.Context, known map[string]bool) {
	ids, err := s.Store.ListAppliedCandidateIDs(ctx)
	if err != nil {
		log.Printf("Sync: failed to list applied candidate ids: %v", err)
		return
	}
	for _, id := range ids {
		if known[id] {
			continue
		}
		if err := s.Store.DeleteAppliedEdges(ctx, id); err != nil {
			log.Printf("Sync: failed to remove orphan edges for %s: %v", id, err)
		}
	}
}
