package judge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemamesh/ontolink/internal/core/model"
)

type mockJudge struct {
	mu       sync.Mutex
	Response string
	Err      error
	prompts  []string
}

func (m *mockJudge) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *mockJudge) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type mockEvalStore struct {
	mu          sync.Mutex
	evaluations map[string]model.Evaluation
}

func newMockEvalStore() *mockEvalStore {
	return &mockEvalStore{evaluations: map[string]model.Evaluation{}}
}

func (m *mockEvalStore) SetEvaluation(ctx context.Context, id string, ev model.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations[id] = ev
	return nil
}

type staticSampler struct{}

func (staticSampler) SampleInstances(ctx context.Context, typeName, property string, limit int) ([]model.InstanceValue, error) {
	return []model.InstanceValue{{UUID: "u1", Value: "team-x"}}, nil
}

func eligibleCandidate(id string, count int64) model.RelationshipCandidate {
	return model.RelationshipCandidate{
		ID:        id,
		Source:    model.Endpoint{TypeName: "Deployment", Property: "serviceOwner"},
		Target:    model.Endpoint{TypeName: "Team", Property: "id"},
		Heuristic: model.Heuristic{MatchCount: count, Comparisons: count, Score: 1.0},
	}
}

func newTestDispatcher(j *mockJudge, store *mockEvalStore) *Dispatcher {
	return NewDispatcher(j, store, staticSampler{}, 10, 4, time.Second)
}

func TestDispatchStoresValidVerdict(t *testing.T) {
	j := &mockJudge{Response: `{"relation_confidence": 0.92, "justification": "shared team ids", "thought": "values line up"}`}
	store := newMockEvalStore()
	d := newTestDispatcher(j, store)

	d.Dispatch(context.Background(), []model.RelationshipCandidate{eligibleCandidate("c1", 50)})

	require.Contains(t, store.evaluations, "c1")
	ev := store.evaluations["c1"]
	assert.Equal(t, 0.92, ev.RelationConfidence)
	assert.Equal(t, "shared team ids", ev.Justification)
	assert.Equal(t, "values line up", ev.Thought)
	assert.False(t, ev.EvaluatedAt.IsZero())
}

func TestDispatchSkipsBelowMinCount(t *testing.T) {
	j := &mockJudge{Response: `{"relation_confidence": 0.9}`}
	store := newMockEvalStore()
	d := newTestDispatcher(j, store)

	d.Dispatch(context.Background(), []model.RelationshipCandidate{
		eligibleCandidate("starved", 9), // below MinCountForEval of 10
	})

	assert.Zero(t, j.calls(), "judge must never see a candidate without enough evidence")
	assert.Empty(t, store.evaluations)
}

func TestDispatchSkipsArchived(t *testing.T) {
	j := &mockJudge{Response: `{"relation_confidence": 0.9}`}
	store := newMockEvalStore()
	d := newTestDispatcher(j, store)

	c := eligibleCandidate("c1", 50)
	c.Archived = true
	d.Dispatch(context.Background(), []model.RelationshipCandidate{c})

	assert.Zero(t, j.calls())
}

func TestDispatchReevaluatesOverriddenCandidate(t *testing.T) {
	// A manual override does not block re-evaluation; it only wins over the
	// stored verdict downstream.
	j := &mockJudge{Response: `{"relation_confidence": 0.99}`}
	store := newMockEvalStore()
	d := newTestDispatcher(j, store)

	c := eligibleCandidate("c1", 50)
	c.Override = model.OverrideRejected
	d.Dispatch(context.Background(), []model.RelationshipCandidate{c})

	assert.Equal(t, 1, j.calls())
	assert.Contains(t, store.evaluations, "c1")
}

func TestDispatchDiscardsMalformedOutput(t *testing.T) {
	j := &mockJudge{Response: `definitely related, trust me`}
	store := newMockEvalStore()
	d := newTestDispatcher(j, store)

	d.Dispatch(context.Background(), []model.RelationshipCandidate{eligibleCandidate("c1", 50)})

	assert.Equal(t, 1, j.calls())
	assert.Empty(t, store.evaluations, "malformed output must not be coerced into a confidence")
}

func TestDispatchDiscardsOutOfRangeConfidence(t *testing.T) {
	j := &mockJudge{Response: `{"relation_confidence": 1.4}`}
	store := newMockEvalStore()
	d := newTestDispatcher(j, store)

	d.Dispatch(context.Background(), []model.RelationshipCandidate{eligibleCandidate("c1", 50)})

	assert.Empty(t, store.evaluations)
}

func TestDispatchLeavesCandidateUntouchedOnJudgeError(t *testing.T) {
	j := &mockJudge{Err: errors.New("quota exceeded")}
	store := newMockEvalStore()
	d := newTestDispatcher(j, store)

	d.Dispatch(context.Background(), []model.RelationshipCandidate{eligibleCandidate("c1", 50)})

	assert.Empty(t, store.evaluations)
}

func TestDispatchIsolatesFailuresPerCandidate(t *testing.T) {
	// One valid verdict among failures still lands.
	j := &mockJudge{Response: `{"relation_confidence": 0.5, "justification": "maybe"}`}
	store := newMockEvalStore()
	d := newTestDispatcher(j, store)

	d.Dispatch(context.Background(), []model.RelationshipCandidate{
		eligibleCandidate("below", 1),
		eligibleCandidate("ok-1", 50),
		eligibleCandidate("ok-2", 50),
	})

	assert.Equal(t, 2, j.calls())
	assert.Len(t, store.evaluations, 2)
}

// sequencingJudge tracks how many Generate calls overlap and what each call
// returned, so tests can assert strict per-candidate ordering.
type sequencingJudge struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
	lastConf    float64
}

func (j *sequencingJudge) Generate(ctx context.Context, prompt string) (string, error) {
	j.mu.Lock()
	j.inFlight++
	if j.inFlight > j.maxInFlight {
		j.maxInFlight = j.inFlight
	}
	call := j.calls
	j.calls++
	j.mu.Unlock()

	// The first call is slow and low-confidence; a later call overlapping it
	// would commit first and then be clobbered by this stale verdict.
	conf := 0.9
	if call == 0 {
		time.Sleep(50 * time.Millisecond)
		conf = 0.1
	}

	j.mu.Lock()
	j.lastConf = conf
	j.inFlight--
	j.mu.Unlock()

	return fmt.Sprintf(`{"relation_confidence": %v, "justification": "j", "thought": "t"}`, conf), nil
}

func TestOverlappingDispatchesSerializePerCandidate(t *testing.T) {
	j := &sequencingJudge{}
	store := newMockEvalStore()
	d := NewDispatcher(j, store, staticSampler{}, 10, 4, time.Second)

	c := eligibleCandidate("c1", 50)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), []model.RelationshipCandidate{c})
		}()
	}
	wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	assert.Equal(t, 2, j.calls)
	assert.Equal(t, 1, j.maxInFlight, "judge calls for one candidate must never overlap")
	require.Contains(t, store.evaluations, "c1")
	assert.Equal(t, j.lastConf, store.evaluations["c1"].RelationConfidence,
		"the stored verdict must come from the last-issued judge call")
}

func TestWorkerAssignmentDeterministic(t *testing.T) {
	d := newTestDispatcher(&mockJudge{}, newMockEvalStore())

	first := d.workerFor("candidate-id-123")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.workerFor("candidate-id-123"))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, d.PoolSize)
}

func TestParseVerdictTagged(t *testing.T) {
	ok := parseVerdict(`Here you go: {"relation_confidence": 0.7, "justification": "j", "thought": "t"} hope that helps`)
	require.NoError(t, ok.Err)
	require.NotNil(t, ok.Verdict)
	assert.Equal(t, 0.7, ok.Verdict.RelationConfidence)

	bad := parseVerdict(`no json here`)
	assert.Error(t, bad.Err)
	assert.Nil(t, bad.Verdict)
	assert.Equal(t, `no json here`, bad.Raw)
}
