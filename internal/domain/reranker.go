package domain

import "context"

// QueryDocumentPair is one (query, passage) input to a relevance model.
type QueryDocumentPair struct {
	Query string
	Text  string
}

// RelevanceModel scores query/passage pairs, one score per pair in input
// order. Typically a cross-encoder served over HTTP.
//
// A mismatched score count is a contract violation; callers fall back to a
// lexical heuristic rather than failing the retrieval.
type RelevanceModel interface {
	Predict(ctx context.Context, pairs []QueryDocumentPair) ([]float64, error)
}
