package model

import (
	"time"

	"github.com/google/uuid"
)

// pairNamespace seeds deterministic candidate ids. Fixed forever; changing it
// would orphan every persisted candidate and counter row.
var pairNamespace = uuid.MustParse("7c9e6e3a-5d12-4f68-9c0b-2a671b2f51d4")

// Endpoint is one side of a relationship hypothesis: a property on a type.
type Endpoint struct {
	TypeName string `json:"type_name"`
	Property string `json:"property"`
}

func (e Endpoint) Key() string {
	return e.TypeName + "." + e.Property
}

// PairID derives the candidate id from the unordered endpoint pair, so the
// same pair discovered in either direction maps to one candidate row.
func PairID(a, b Endpoint) string {
	ka, kb := a.Key(), b.Key()
	if kb < ka {
		ka, kb = kb, ka
	}
	return uuid.NewSHA1(pairNamespace, []byte(ka+"|"+kb)).String()
}

// CanonicalPair orders two endpoints the way they are persisted, so the same
// pair discovered from either side stores identical source/target fields.
func CanonicalPair(a, b Endpoint) (Endpoint, Endpoint) {
	if b.Key() < a.Key() {
		return b, a
	}
	return a, b
}

// ManualOverride is the operator channel. Modeled as one three-state value so
// "accepted and rejected at once" cannot be represented at all.
type ManualOverride string

const (
	OverrideNone     ManualOverride = ""
	OverrideAccepted ManualOverride = "accepted"
	OverrideRejected ManualOverride = "rejected"
)

// Heuristic is the statistical, non-LLM evidence for a candidate. Lives in
// the counter store, joined onto the candidate when loaded.
type Heuristic struct {
	MatchCount  int64     `json:"match_count"`
	Comparisons int64     `json:"comparisons"`
	Score       float64   `json:"score"`
	LastSeen    time.Time `json:"last_seen"`
}

// Evaluation is the judge's verdict for a candidate. Nil until the judge has
// run; overwritten wholesale on re-evaluation.
type Evaluation struct {
	RelationConfidence float64   `json:"relation_confidence"`
	Justification      string    `json:"justification"`
	Thought            string    `json:"thought"`
	EvaluatedAt        time.Time `json:"evaluated_at"`
}

// RelationshipCandidate is a hypothesis that two entity-type properties are
// related. Identity is the unordered endpoint pair.
type RelationshipCandidate struct {
	ID         string         `json:"id"`
	Source     Endpoint       `json:"source"`
	Target     Endpoint       `json:"target"`
	Heuristic  Heuristic      `json:"heuristic"`
	Evaluation *Evaluation    `json:"evaluation,omitempty"`
	Override   ManualOverride `json:"manual_override"`
	IsApplied  bool           `json:"is_applied"`
	Archived   bool           `json:"archived"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ManuallyAccepted and ManuallyRejected project the override enum onto the
// two flags the API exposes.
func (c RelationshipCandidate) ManuallyAccepted() bool { return c.Override == OverrideAccepted }
func (c RelationshipCandidate) ManuallyRejected() bool { return c.Override == OverrideRejected }

// InstanceValue is one sampled property value from the data graph.
type InstanceValue struct {
	UUID  string `json:"uuid"`
	Value string `json:"value"`
}
