// Package llm wraps the model providers behind small capability interfaces.
// The rest of the system depends on these, never on a concrete SDK.
package llm

import (
	"context"
)

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type RerankerClient interface {
	Rank(ctx context.Context, query string, documents []string) ([]int, error)
}
