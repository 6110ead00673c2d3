// Package judge runs the LLM evaluation stage: a fixed pool of workers, each
// with its own queue, pulling eligible candidates and asking the judge model
// whether the two properties are really related.
package judge

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/schemamesh/ontolink/internal/core/model"
	"github.com/schemamesh/ontolink/internal/llm"
)

type EvaluationStore interface {
	SetEvaluation(ctx context.Context, id string, ev model.Evaluation) error
}

type Sampler interface {
	SampleInstances(ctx context.Context, typeName, property string, limit int) ([]model.InstanceValue, error)
}

type Dispatcher struct {
	Judge           llm.LLMClient
	Store           EvaluationStore
	Sampler         Sampler
	MinCountForEval int64
	PoolSize        int
	Timeout         time.Duration

	// values per endpoint quoted in the prompt
	promptSample int

	// candidate id -> *sync.Mutex. The per-worker queues only serialize
	// candidates within one Dispatch call; these locks extend the guarantee
	// across overlapping calls (a manual per-candidate evaluation racing a
	// batch pass), so judge calls for one candidate stay strictly sequential
	// and a verdict can only be overwritten by a later-issued one.
	inFlight sync.Map
}

func NewDispatcher(judge llm.LLMClient, store EvaluationStore, sampler Sampler, minCount int64, poolSize int, timeout time.Duration) *Dispatcher {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Dispatcher{
		Judge:           judge,
		Store:           store,
		Sampler:         sampler,
		MinCountForEval: minCount,
		PoolSize:        poolSize,
		Timeout:         timeout,
		promptSample:    5,
	}
}

// Eligible reports whether a candidate may reach the judge: enough heuristic
// evidence and not archived. Manual overrides do not block re-evaluation;
// they only dominate the result, so a fresh verdict never flips an override.
func (d *Dispatcher) Eligible(c model.RelationshipCandidate) bool {
	if c.Archived {
		return false
	}
	return c.Heuristic.MatchCount >= d.MinCountForEval
}

// workerFor assigns a candidate to a worker by hash of its id, so retries of
// the same candidate always land on the same queue and its evaluations stay
// strictly sequential.
func (d *Dispatcher) workerFor(candidateID string) int {
	h := fnv.New32a()
	h.Write([]byte(candidateID))
	return int(h.Sum32() % uint32(d.PoolSize))
}

// Dispatch fans eligible candidates across the pool and waits for all
// workers to drain. One worker's failure or backlog never blocks another's
// queue, and a panic in one evaluation is contained to that worker's
// current candidate.
func (d *Dispatcher) Dispatch(ctx context.Context, cands []model.RelationshipCandidate) {
	queues := make([]chan model.RelationshipCandidate, d.PoolSize)
	for i := range queues {
		queues[i] = make(chan model.RelationshipCandidate, len(cands))
	}

	dispatched := 0
	for _, c := range cands {
		if !d.Eligible(c) {
			continue
		}
		queues[d.workerFor(c.ID)] <- c
		dispatched++
	}
	for _, q := range queues {
		close(q)
	}
	if dispatched == 0 {
		return
	}
	log.Printf("Dispatching %d candidates across %d judge workers", dispatched, d.PoolSize)

	var wg sync.WaitGroup
	for i, q := range queues {
		wg.Add(1)
		go func(worker int, queue <-chan model.RelationshipCandidate) {
			defer wg.Done()
			for c := range queue {
				d.evaluateOne(ctx, worker, c)
			}
		}(i, q)
	}
	wg.Wait()
}

// evaluateOne runs a single judge call. Any failure leaves the candidate's
// stored evaluation exactly as it was; the heuristic is never touched here.
func (d *Dispatcher) evaluateOne(ctx context.Context, worker int, c model.RelationshipCandidate) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Judge worker %d: panic evaluating %s: %v", worker, c.ID, r)
		}
	}()

	lock, _ := d.inFlight.LoadOrStore(c.ID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	prompt, err := d.buildPrompt(ctx, c)
	if err != nil {
		log.Printf("Judge worker %d: failed to build prompt for %s: %v", worker, c.ID, err)
		return
	}

	callCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	raw, err := d.Judge.Generate(callCtx, prompt)
	if err != nil {
		log.Printf("Judge worker %d: judge call failed for %s: %v", worker, c.ID, err)
		return
	}

	result := parseVerdict(raw)
	if result.Err != nil {
		log.Printf("Judge worker %d: discarding malformed verdict for %s: %v", worker, c.ID, result.Err)
		return
	}

	ev := model.Evaluation{
		RelationConfidence: result.Verdict.RelationConfidence,
		Justification:      result.Verdict.Justification,
		Thought:            result.Verdict.Thought,
		EvaluatedAt:        time.Now().UTC(),
	}
	if err := d.Store.SetEvaluation(ctx, c.ID, ev); err != nil {
		log.Printf("Judge worker %d: failed to store evaluation for %s: %v", worker, c.ID, err)
	}
}

func (d *Dispatcher) buildPrompt(ctx context.Context, c model.RelationshipCandidate) (string, error) {
	sourceVals, err := d.Sampler.SampleInstances(ctx, c.Source.TypeName, c.Source.Property, d.promptSample)
	if err != nil {
		return "", err
	}
	targetVals, err := d.Sampler.SampleInstances(ctx, c.Target.TypeName, c.Target.Property, d.promptSample)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Two entity types in a property graph may be related through these properties:

<ENDPOINT A>
Type: %s
Property: %s
Sample values: %s
</ENDPOINT A>

<ENDPOINT B>
Type: %s
Property: %s
Sample values: %s
</ENDPOINT B>

Statistical evidence: %d of %d sampled value comparisons matched (rolling quality score %.3f).

Decide whether property A is genuinely a reference to property B (or vice versa), such as a foreign key, an owner field, or a shared identifier. Coincidental overlap of generic values is not a relationship.

Return a JSON object with exactly these keys:
{
  "relation_confidence": <float between 0 and 1>,
  "justification": "<one or two sentences for an operator>",
  "thought": "<your reasoning trace>"
}
`,
		c.Source.TypeName, c.Source.Property, joinValues(sourceVals),
		c.Target.TypeName, c.Target.Property, joinValues(targetVals),
		c.Heuristic.MatchCount, c.Heuristic.Comparisons, c.Heuristic.Score), nil
}

func joinValues(vals []model.InstanceValue) string {
	if len(vals) == 0 {
		return "(none observed)"
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%q", v.Value)
	}
	return strings.Join(parts, ", ")
}
