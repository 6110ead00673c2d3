package judge

import (
	"fmt"

	"github.com/schemamesh/ontolink/internal/core/common"
)

// Verdict is the judge's structured output.
type Verdict struct {
	RelationConfidence float64 `json:"relation_confidence"`
	Justification      string  `json:"justification"`
	Thought            string  `json:"thought"`
}

// Result is a tagged parse outcome: exactly one of Verdict or Err is set.
// Malformed judge output stays distinguishable from a real verdict instead
// of being coerced into a confidence value.
type Result struct {
	Verdict *Verdict
	Raw     string
	Err     error
}

func parseVerdict(raw string) Result {
	v, err := common.ParseJSON[Verdict](raw)
	if err != nil {
		return Result{Raw: raw, Err: err}
	}
	if v.RelationConfidence < 0 || v.RelationConfidence > 1 {
		return Result{Raw: raw, Err: fmt.Errorf("relation_confidence %v outside [0,1]", v.RelationConfidence)}
	}
	return Result{Verdict: &v, Raw: raw}
}
