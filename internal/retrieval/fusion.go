package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf8"

	"retrieval-orchestrator/internal/domain"

	"golang.org/x/sync/errgroup"
)

// FusionSearch runs one query variant against both channels of a chunk
// collection and fuses the ranked lists into a single scored candidate list.
type FusionSearch struct {
	Backend domain.SearchBackend
	Logger  *slog.Logger
}

// Search fetches top-k from the dense and sparse channels concurrently,
// unions the two sets by chunk identity, scores each row as
// (1 - vectorDistance) + lexicalRank, and returns the top k rows by fused
// score. A chunk present in only one channel contributes that channel's term;
// the missing vector term uses the source-computed distance when the sparse
// channel carries one, else distance 1.0. An absent collection yields an
// empty result, not an error.
//
// Backends that can execute the fusion server-side in one query are used
// directly; both paths produce identical rows.
func (f *FusionSearch) Search(ctx context.Context, collection string, queryVector []float32, queryText string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	if hs, ok := f.Backend.(domain.HybridSearcher); ok {
		docs, err := hs.SearchHybrid(ctx, collection, queryVector, queryText, k)
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("hybrid search: %w", err)
		}
		return docs, nil
	}

	var (
		vecHits []domain.VectorHit
		lexHits []domain.LexicalHit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := f.Backend.TopKByVector(gctx, collection, queryVector, k)
		if err != nil {
			return fmt.Errorf("vector channel: %w", err)
		}
		vecHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := f.Backend.TopKByLexicalMatch(gctx, collection, queryText, k)
		if err != nil {
			return fmt.Errorf("lexical channel: %w", err)
		}
		lexHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	docs := fuse(vecHits, lexHits, k)

	if f.Logger != nil {
		f.Logger.Info("fusion_search_completed",
			slog.String("collection", collection),
			slog.Int("vector_hits", len(vecHits)),
			slog.Int("lexical_hits", len(lexHits)),
			slog.Int("fused", len(docs)))
	}
	return docs, nil
}

type fusedRow struct {
	chunk       domain.Chunk
	vectorTerm  float64
	lexicalTerm float64
}

// fuse unions both channels by chunk identity and ranks by combined score,
// ties broken by first-seen order (vector channel first).
func fuse(vecHits []domain.VectorHit, lexHits []domain.LexicalHit, k int) []domain.ScoredDocument {
	rows := make(map[string]*fusedRow, len(vecHits)+len(lexHits))
	order := make([]*fusedRow, 0, len(vecHits)+len(lexHits))

	for _, h := range vecHits {
		key := chunkKey(h.Chunk)
		if _, ok := rows[key]; ok {
			continue
		}
		row := &fusedRow{chunk: h.Chunk, vectorTerm: 1 - h.Distance}
		rows[key] = row
		order = append(order, row)
	}
	for _, h := range lexHits {
		key := chunkKey(h.Chunk)
		if row, ok := rows[key]; ok {
			row.lexicalTerm = h.Rank
			continue
		}
		vectorTerm := 0.0
		if h.HasDistance {
			vectorTerm = 1 - h.Distance
		}
		row := &fusedRow{chunk: h.Chunk, vectorTerm: vectorTerm, lexicalTerm: h.Rank}
		rows[key] = row
		order = append(order, row)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].vectorTerm+order[i].lexicalTerm > order[j].vectorTerm+order[j].lexicalTerm
	})
	if len(order) > k {
		order = order[:k]
	}

	docs := make([]domain.ScoredDocument, len(order))
	for i, row := range order {
		docs[i] = domain.ScoredDocument{Chunk: row.chunk, Score: row.vectorTerm + row.lexicalTerm}
	}
	return docs
}

// chunkKey is the fusion identity: the chunk id when present, else a text
// prefix for chunks lacking a stable id.
func chunkKey(c domain.Chunk) string {
	if c.ID != "" {
		return c.ID
	}
	if utf8.RuneCountInString(c.Text) <= dedupeKeyLen {
		return c.Text
	}
	return string([]rune(c.Text)[:dedupeKeyLen])
}
