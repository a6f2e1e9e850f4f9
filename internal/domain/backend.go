package domain

import (
	"context"
	"errors"
)

// ErrCollectionNotFound reports that a chunk collection has nothing indexed
// yet. Callers treat it as an empty result, not a failure.
var ErrCollectionNotFound = errors.New("collection not found")

// VectorHit is one chunk returned from the dense channel.
type VectorHit struct {
	Chunk    Chunk
	Distance float64 // cosine distance to the query vector
}

// LexicalHit is one chunk returned from the sparse channel. Only chunks whose
// text actually matches the lexical query are returned. Stores that compute
// the chunk's vector distance in the same pass (the SQL-backed store does)
// report it via Distance/HasDistance so fusion can use the real term.
type LexicalHit struct {
	Chunk       Chunk
	Rank        float64 // term-frequency relevance score
	Distance    float64
	HasDistance bool
}

// SearchBackend exposes the two read channels over chunk collections.
type SearchBackend interface {
	TopKByVector(ctx context.Context, collection string, queryVector []float32, k int) ([]VectorHit, error)
	TopKByLexicalMatch(ctx context.Context, collection string, queryText string, k int) ([]LexicalHit, error)
	HasCollection(ctx context.Context, collection string) (bool, error)
}

// HybridSearcher is an optional fast path for backends that can run the whole
// fetch-union-fuse as one server-side query. Output must be identical to the
// client-side two-phase fusion.
type HybridSearcher interface {
	SearchHybrid(ctx context.Context, collection string, queryVector []float32, queryText string, k int) ([]ScoredDocument, error)
}

// ChunkWriter persists embedded chunks into a collection. Embeddings are
// positional: embeddings[i] belongs to chunks[i].
type ChunkWriter interface {
	AddChunks(ctx context.Context, collection string, chunks []Chunk, embeddings [][]float32) error
}
