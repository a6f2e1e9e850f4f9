package usecase

import "retrieval-orchestrator/internal/domain"

// RetrievalOptions carries the tunables for one retriever instance. The
// caller constructs it once and passes it in explicitly; there is no shared
// process-wide instance to reconfigure.
type RetrievalOptions struct {
	ChunkSize            int
	ChunkOverlap         int
	SemanticChunking     bool
	QueryExpansion       bool
	Rerank               bool
	TopK                 int
	FullContextThreshold int64
}

// DefaultRetrievalOptions mirrors the conventional defaults: 1000-character
// chunks with 200 overlap, expansion and reranking on, five results per file.
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		ChunkSize:            1000,
		ChunkOverlap:         200,
		QueryExpansion:       true,
		Rerank:               true,
		TopK:                 5,
		FullContextThreshold: domain.DefaultFullContextThreshold,
	}
}
