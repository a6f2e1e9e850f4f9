package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"retrieval-orchestrator/internal/domain"
)

// Reranker re-scores a candidate set against the original query, using an
// injected relevance model when one is supplied and a lexical-overlap
// heuristic otherwise.
type Reranker struct {
	Enabled bool
	Model   domain.RelevanceModel // nil selects the term-overlap heuristic
	Logger  *slog.Logger
}

// Rerank returns at most topK scored documents in descending score order,
// ties broken by input order. Disabled reranking (or an empty candidate set)
// passes through the first topK candidates at score 1.0 without reordering.
// A model failure or a mismatched score count falls back to the heuristic for
// this call.
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []domain.Chunk, topK int) []domain.ScoredDocument {
	if !r.Enabled || len(chunks) == 0 {
		n := clampTopK(topK, len(chunks))
		out := make([]domain.ScoredDocument, 0, n)
		for _, c := range chunks[:n] {
			out = append(out, domain.ScoredDocument{Chunk: c, Score: 1.0})
		}
		return out
	}

	if r.Model != nil {
		docs, err := r.rerankWithModel(ctx, query, chunks, topK)
		if err == nil {
			return docs
		}
		if r.Logger != nil {
			r.Logger.Warn("rerank_model_failed_using_fallback",
				slog.Int("candidate_count", len(chunks)),
				slog.String("error", err.Error()))
		}
	}
	return rerankByOverlap(query, chunks, topK)
}

func (r *Reranker) rerankWithModel(ctx context.Context, query string, chunks []domain.Chunk, topK int) ([]domain.ScoredDocument, error) {
	pairs := make([]domain.QueryDocumentPair, len(chunks))
	for i, c := range chunks {
		pairs[i] = domain.QueryDocumentPair{Query: query, Text: c.Text}
	}

	scores, err := r.Model.Predict(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(scores) != len(chunks) {
		return nil, fmt.Errorf("model returned %d scores for %d pairs", len(scores), len(chunks))
	}

	docs := make([]domain.ScoredDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = domain.ScoredDocument{Chunk: c, Score: scores[i]}
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	return docs[:clampTopK(topK, len(docs))], nil
}

// rerankByOverlap scores each chunk as the fraction of query terms its text
// contains, over lower-cased whitespace-tokenized term sets.
func rerankByOverlap(query string, chunks []domain.Chunk, topK int) []domain.ScoredDocument {
	queryTerms := termSet(query)

	docs := make([]domain.ScoredDocument, len(chunks))
	for i, c := range chunks {
		score := 0.0
		if len(queryTerms) > 0 {
			contentTerms := termSet(c.Text)
			matched := 0
			for t := range queryTerms {
				if _, ok := contentTerms[t]; ok {
					matched++
				}
			}
			score = float64(matched) / float64(len(queryTerms))
		}
		docs[i] = domain.ScoredDocument{Chunk: c, Score: score}
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	return docs[:clampTopK(topK, len(docs))]
}

func termSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func clampTopK(topK, n int) int {
	if topK <= 0 || topK > n {
		return n
	}
	return topK
}
