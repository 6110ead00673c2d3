// Package match is the deep property matcher: it samples real instance
// values from both endpoints of a candidate and turns value overlap into a
// durable heuristic score. This is the statistical filter between the cheap
// index lookup and the expensive judge call.
package match

import (
	"context"
	"fmt"

	"github.com/schemamesh/ontolink/internal/core/model"
)

type Sampler interface {
	SampleInstances(ctx context.Context, typeName, property string, limit int) ([]model.InstanceValue, error)
}

type CounterObserver interface {
	Observe(ctx context.Context, candidateID string, matched, compared int64, alpha float64) (model.Heuristic, error)
}

type Matcher struct {
	Sampler    Sampler
	Counters   CounterObserver
	SampleSize int
	ScoreAlpha float64
}

func NewMatcher(sampler Sampler, counters CounterObserver, sampleSize int, scoreAlpha float64) *Matcher {
	return &Matcher{
		Sampler:    sampler,
		Counters:   counters,
		SampleSize: sampleSize,
		ScoreAlpha: scoreAlpha,
	}
}

// PairKind picks the comparison rule for a candidate whose endpoints may
// disagree on kind. A reference on either side forces exact comparison; any
// other disagreement falls back to normalized text.
func PairKind(a, b model.PropertyKind) model.PropertyKind {
	if a == b {
		return a
	}
	if a == model.KindReference || b == model.KindReference {
		return model.KindReference
	}
	return model.KindString
}

// EvaluateHeuristic samples both endpoints, counts source values that have a
// compatible target value, and folds the result into the candidate's counter
// row. It is the sole writer of the heuristic; callers must not run it
// concurrently for the same candidate.
func (m *Matcher) EvaluateHeuristic(ctx context.Context, cand model.RelationshipCandidate, kind model.PropertyKind) (model.Heuristic, error) {
	sourceVals, err := m.Sampler.SampleInstances(ctx, cand.Source.TypeName, cand.Source.Property, m.SampleSize)
	if err != nil {
		return model.Heuristic{}, fmt.Errorf("failed to sample %s: %w", cand.Source.Key(), err)
	}
	targetVals, err := m.Sampler.SampleInstances(ctx, cand.Target.TypeName, cand.Target.Property, m.SampleSize)
	if err != nil {
		return model.Heuristic{}, fmt.Errorf("failed to sample %s: %w", cand.Target.Key(), err)
	}

	if len(sourceVals) == 0 || len(targetVals) == 0 {
		// Nothing to compare; record the pass without moving the score.
		return m.Counters.Observe(ctx, cand.ID, 0, 0, m.ScoreAlpha)
	}

	var matched int64
	for _, sv := range sourceVals {
		for _, tv := range targetVals {
			if Compatible(kind, sv.Value, tv.Value) {
				matched++
				break
			}
		}
	}

	return m.Counters.Observe(ctx, cand.ID, matched, int64(len(sourceVals)), m.ScoreAlpha)
}
