// Package candidate turns heuristic index hits into durable relationship
// candidates.
package candidate

import (
	"context"
	"log"

	"github.com/schemamesh/ontolink/internal/core/index"
	"github.com/schemamesh/ontolink/internal/core/model"
)

// Index is the similarity source. Pairs returned here have already passed
// the bloom gate.
type Index interface {
	Similar(from model.Endpoint, limit int, allowSelf bool) []index.Entry
}

type Store interface {
	CreateCandidate(ctx context.Context, c model.RelationshipCandidate) (bool, error)
}

type CounterEnsurer interface {
	Ensure(ctx context.Context, candidateID string) error
}

type Generator struct {
	Index         Index
	Store         Store
	Counters      CounterEnsurer
	TopK          int
	AllowSelfRefs bool
}

func NewGenerator(ix Index, store Store, counters CounterEnsurer, topK int, allowSelfRefs bool) *Generator {
	return &Generator{
		Index:         ix,
		Store:         store,
		Counters:      counters,
		TopK:          topK,
		AllowSelfRefs: allowSelfRefs,
	}
}

// Generate queries the index for every property of every type and persists
// the surviving pairs. Deduplicates by the deterministic pair id, so a pair
// found from both directions lands once. Returns the ids seen this run, new
// and existing alike.
func (g *Generator) Generate(ctx context.Context, types []model.EntityType) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	for _, t := range types {
		for _, p := range t.Properties {
			from := model.Endpoint{TypeName: t.Name, Property: p.Name}

			for _, entry := range g.Index.Similar(from, g.TopK, g.AllowSelfRefs) {
				source, target := model.CanonicalPair(from, entry.Endpoint)
				id := model.PairID(source, target)
				if seen[id] {
					continue
				}
				seen[id] = true

				created, err := g.Store.CreateCandidate(ctx, model.RelationshipCandidate{
					ID:     id,
					Source: source,
					Target: target,
				})
				if err != nil {
					log.Printf("Failed to persist candidate %s <-> %s: %v", source.Key(), target.Key(), err)
					continue
				}
				if created {
					if err := g.Counters.Ensure(ctx, id); err != nil {
						log.Printf("Failed to seed counter for %s: %v", id, err)
					}
				}
				ids = append(ids, id)
			}
		}
	}

	return ids, nil
}
