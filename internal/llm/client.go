package llm

import (
	"context"
)

// LLMClient is the judge endpoint: prompt in, raw text out. All providers
// sit behind this single method so the dispatcher treats the judge as a
// black box.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
