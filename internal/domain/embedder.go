package domain

import "context"

// Embedder turns text into an embedding vector. The prefix selects the
// query-time or indexing-time embedding convention.
type Embedder interface {
	Embed(ctx context.Context, text string, prefix string) ([]float32, error)
}
