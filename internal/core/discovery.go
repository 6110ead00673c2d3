package core

import (
	"context"
	"fmt"
	"log"

	"github.com/schemamesh/ontolink/internal/config"
	"github.com/schemamesh/ontolink/internal/core/candidate"
	"github.com/schemamesh/ontolink/internal/core/index"
	"github.com/schemamesh/ontolink/internal/core/judge"
	"github.com/schemamesh/ontolink/internal/core/match"
	"github.com/schemamesh/ontolink/internal/core/model"
	"github.com/schemamesh/ontolink/internal/core/repo"
	"github.com/schemamesh/ontolink/internal/core/syncer"
	"github.com/schemamesh/ontolink/internal/driver"
	"github.com/schemamesh/ontolink/internal/llm"
)

// CounterStore is the durable heuristic counter backend.
type CounterStore interface {
	Ensure(ctx context.Context, candidateID string) error
	Observe(ctx context.Context, candidateID string, matched, compared int64, alpha float64) (model.Heuristic, error)
	Get(ctx context.Context, candidateID string) (model.Heuristic, error)
}

// Discovery wires the full relationship discovery pipeline: index rebuild,
// candidate generation, deep matching, judging, and edge sync.
type Discovery struct {
	Repo       *repo.Repo
	Counters   CounterStore
	Index      *index.Index
	Generator  *candidate.Generator
	Matcher    *match.Matcher
	Dispatcher *judge.Dispatcher
	Syncer     *syncer.Syncer

	cfg *config.Config
}

func NewDiscovery(d driver.GraphDriver, counters CounterStore, judgeClient llm.LLMClient, cfg *config.Config) *Discovery {
	r := repo.New(d)
	ix := index.New(cfg.Index.BloomBits, cfg.Index.BloomFPRate)
	disc := cfg.Discovery

	return &Discovery{
		Repo:      r,
		Counters:  counters,
		Index:     ix,
		Generator: candidate.NewGenerator(ix, r, counters, disc.TopK, disc.AllowSelfRefs),
		Matcher:   match.NewMatcher(r, counters, disc.SampleSize, disc.ScoreAlpha),
		Dispatcher: judge.NewDispatcher(judgeClient, r, r,
			disc.MinCountForEval, disc.WorkerPoolSize, cfg.JudgeTimeout()),
		Syncer: syncer.NewSyncer(r, disc.AcceptanceThreshold, disc.RejectionThreshold, disc.SyncInstanceLimit),
		cfg:    cfg,
	}
}

// RebuildIndex reindexes every known (type, property) endpoint with a fresh
// value sample. Queries against the old generation keep working until the
// swap.
func (d *Discovery) RebuildIndex(ctx context.Context) ([]model.EntityType, error) {
	types, err := d.Repo.ListEntityTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity types: %w", err)
	}

	var docs []index.Document
	for _, t := range types {
		for _, p := range t.Properties {
			ep := model.Endpoint{TypeName: t.Name, Property: p.Name}
			vals, err := d.Repo.SampleInstances(ctx, t.Name, p.Name, d.cfg.Index.ValueSample)
			if err != nil {
				log.Printf("Index rebuild: failed to sample %s: %v", ep.Key(), err)
				// Index the property name alone rather than dropping the endpoint.
			}
			doc := index.Document{Endpoint: ep}
			for _, v := range vals {
				doc.Values = append(doc.Values, v.Value)
			}
			docs = append(docs, doc)
		}
	}

	d.Index.Rebuild(docs)
	log.Printf("Heuristic index rebuilt: %d endpoints across %d types", len(docs), len(types))
	return types, nil
}

// Reindex rebuilds the heuristic index without running the rest of the
// pipeline. The index is process-local, so this needs no run lease and can
// happen on a tighter cadence than full discovery cycles.
func (d *Discovery) Reindex(ctx context.Context) error {
	_, err := d.RebuildIndex(ctx)
	return err
}

// Process runs generation and deep matching without touching the judge:
// rebuild the index, emit candidates, then refresh every touched candidate's
// heuristic counters.
func (d *Discovery) Process(ctx context.Context) error {
	types, err := d.RebuildIndex(ctx)
	if err != nil {
		return err
	}

	ids, err := d.Generator.Generate(ctx, types)
	if err != nil {
		return fmt.Errorf("candidate generation failed: %w", err)
	}
	log.Printf("Candidate generation touched %d pairs", len(ids))

	kinds := kindTable(types)
	for _, id := range ids {
		c, err := d.Repo.GetCandidate(ctx, id)
		if err != nil {
			log.Printf("Deep match: failed to load candidate %s: %v", id, err)
			continue
		}
		if c.Archived {
			continue
		}
		if _, err := d.Matcher.EvaluateHeuristic(ctx, c, pairKind(kinds, c)); err != nil {
			log.Printf("Deep match: failed to score %s: %v", id, err)
		}
	}

	cands, err := d.Repo.ListCandidates(ctx)
	if err != nil {
		log.Printf("Failed to list candidates for archival sweep: %v", err)
		return nil
	}
	d.archiveSuperseded(ctx, kinds, cands)
	return nil
}

// archiveSuperseded flags candidates whose endpoints vanished from the
// schema. Archived candidates keep their history but drop out of matching,
// judging, and sync; their applied edges are removed by the next orphan
// sweep.
func (d *Discovery) archiveSuperseded(ctx context.Context, kinds map[string]model.EntityType, cands []model.RelationshipCandidate) {
	for _, c := range cands {
		if c.Archived || (endpointLive(kinds, c.Source) && endpointLive(kinds, c.Target)) {
			continue
		}
		if err := d.Repo.ArchiveCandidate(ctx, c.ID); err != nil {
			log.Printf("Failed to archive superseded candidate %s: %v", c.ID, err)
			continue
		}
		log.Printf("Archived candidate %s: endpoint no longer in the schema", c.ID)
	}
}

func endpointLive(kinds map[string]model.EntityType, e model.Endpoint) bool {
	t, ok := kinds[e.TypeName]
	return ok && t.HasProperty(e.Property)
}

// Evaluate sends every eligible candidate through the judge pool. Candidates
// below the evidence threshold or under manual override never reach it.
func (d *Discovery) Evaluate(ctx context.Context) error {
	cands, err := d.Candidates(ctx)
	if err != nil {
		return err
	}
	d.Dispatcher.Dispatch(ctx, cands)
	return nil
}

// SyncAccepted materializes edges for accepted candidates, removes edges of
// rejected ones, and sweeps orphans. Returns edges created.
func (d *Discovery) SyncAccepted(ctx context.Context) (int, error) {
	types, err := d.Repo.ListEntityTypes(ctx)
	if err != nil {
		return 0, err
	}
	cands, err := d.Candidates(ctx)
	if err != nil {
		return 0, err
	}

	kinds := kindTable(types)
	created, err := d.Syncer.Sync(ctx, cands, func(c model.RelationshipCandidate) model.PropertyKind {
		return pairKind(kinds, c)
	})
	if err != nil {
		return created, err
	}

	known := make(map[string]bool, len(cands))
	for _, c := range cands {
		known[c.ID] = true
	}
	d.Syncer.CleanupOrphans(ctx, known)

	return created, nil
}

// Run is one full discovery cycle.
func (d *Discovery) Run(ctx context.Context) error {
	if err := d.Process(ctx); err != nil {
		return err
	}
	if err := d.Evaluate(ctx); err != nil {
		return err
	}
	created, err := d.SyncAccepted(ctx)
	if err != nil {
		return err
	}
	log.Printf("Discovery cycle complete: %d edges materialized", created)
	return nil
}

// Candidates loads the active candidate set with heuristics joined in from
// the counter store.
func (d *Discovery) Candidates(ctx context.Context) ([]model.RelationshipCandidate, error) {
	cands, err := d.Repo.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	for i := range cands {
		h, err := d.Counters.Get(ctx, cands[i].ID)
		if err != nil {
			log.Printf("Failed to load counter for %s: %v", cands[i].ID, err)
			continue
		}
		cands[i].Heuristic = h
	}
	return cands, nil
}

func kindTable(types []model.EntityType) map[string]model.EntityType {
	m := make(map[string]model.EntityType, len(types))
	for _, t := range types {
		m[t.Name] = t
	}
	return m
}

func pairKind(kinds map[string]model.EntityType, c model.RelationshipCandidate) model.PropertyKind {
	return match.PairKind(
		kinds[c.Source.TypeName].PropertyKind(c.Source.Property),
		kinds[c.Target.TypeName].PropertyKind(c.Target.Property),
	)
}
