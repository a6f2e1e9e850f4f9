// Package memstore provides an in-process search backend built on an HNSW
// graph for the dense channel and a memory-only bleve index for the sparse
// channel. It backs local development and tests where Postgres is overkill.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"retrieval-orchestrator/internal/domain"

	"github.com/blevesearch/bleve/v2"
	"github.com/coder/hnsw"
)

type collection struct {
	graph  *hnsw.Graph[string]
	index  bleve.Index
	chunks map[string]domain.Chunk
}

// Store implements domain.SearchBackend and domain.ChunkWriter entirely in
// memory. Collections are created lazily on the first AddChunks call.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var (
	_ domain.SearchBackend = (*Store)(nil)
	_ domain.ChunkWriter   = (*Store)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) AddChunks(ctx context.Context, name string, chunks []domain.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[name]
	if !ok {
		index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return fmt.Errorf("failed to create lexical index: %w", err)
		}
		graph := hnsw.NewGraph[string]()
		graph.Distance = hnsw.CosineDistance
		coll = &collection{
			graph:  graph,
			index:  index,
			chunks: make(map[string]domain.Chunk),
		}
		s.collections[name] = coll
	}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		coll.graph.Add(hnsw.MakeNode(chunk.ID, embeddings[i]))
		if err := coll.index.Index(chunk.ID, map[string]any{"text": chunk.Text}); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
		coll.chunks[chunk.ID] = chunk
	}
	return nil
}

func (s *Store) TopKByVector(ctx context.Context, name string, queryVector []float32, k int) ([]domain.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[name]
	if !ok {
		return nil, domain.ErrCollectionNotFound
	}

	neighbors := coll.graph.Search(queryVector, k)

	hits := make([]domain.VectorHit, 0, len(neighbors))
	for _, node := range neighbors {
		chunk, ok := coll.chunks[node.Key]
		if !ok {
			continue
		}
		// The graph does not expose per-result distances, so recompute the
		// exact distance for scoring.
		hits = append(hits, domain.VectorHit{
			Chunk:    chunk,
			Distance: float64(coll.graph.Distance(queryVector, node.Value)),
		})
	}
	return hits, nil
}

func (s *Store) TopKByLexicalMatch(ctx context.Context, name string, queryText string, k int) ([]domain.LexicalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[name]
	if !ok {
		return nil, domain.ErrCollectionNotFound
	}

	query := bleve.NewMatchQuery(queryText)
	query.SetField("text")
	req := bleve.NewSearchRequest(query)
	req.Size = k

	res, err := coll.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search lexical index: %w", err)
	}

	hits := make([]domain.LexicalHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		chunk, ok := coll.chunks[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, domain.LexicalHit{Chunk: chunk, Rank: hit.Score})
	}
	return hits, nil
}

func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}
