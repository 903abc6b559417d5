package core

import "context"

// LLMProvider is the narrow generation capability the chat pipeline calls.
// maxTokens bounds the model's output; callers pick a per-stage budget.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string, maxTokens int32) (string, error)
}
