package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/retrieval"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RetrieveInput defines the input parameters for Retrieve.
type RetrieveInput struct {
	Query string
	Files []domain.FileDescriptor
	K     int // results per file; 0 falls back to the configured TopK
}

// RetrieveOutput defines the output for Retrieve.
type RetrieveOutput struct {
	Documents []domain.ScoredDocument
}

// RetrieveUsecase drives one retrieval call: per-file mode selection, query
// expansion, dual-channel fusion search, deduplication, and reranking.
type RetrieveUsecase interface {
	Execute(ctx context.Context, input RetrieveInput) (*RetrieveOutput, error)
}

type retrieveUsecase struct {
	backend  domain.SearchBackend
	embedder domain.Embedder
	opts     RetrievalOptions
	logger   *slog.Logger

	expander retrieval.Expander
	fusion   *retrieval.FusionSearch
	reranker *retrieval.Reranker
}

// NewRetrieveUsecase creates a new RetrieveUsecase. model may be nil, in
// which case reranking uses the lexical-overlap fallback.
func NewRetrieveUsecase(
	backend domain.SearchBackend,
	embedder domain.Embedder,
	model domain.RelevanceModel,
	opts RetrievalOptions,
	logger *slog.Logger,
) RetrieveUsecase {
	return &retrieveUsecase{
		backend:  backend,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
		expander: retrieval.Expander{Enabled: opts.QueryExpansion},
		fusion:   &retrieval.FusionSearch{Backend: backend, Logger: logger},
		reranker: &retrieval.Reranker{Enabled: opts.Rerank, Model: model, Logger: logger},
	}
}

// Execute retrieves against every file concurrently and concatenates per-file
// results in input order; each file's local ranking is authoritative within
// itself. A cancelled context aborts the whole call rather than returning a
// truncated list. Per-file backend failures degrade to zero contributions.
func (u *retrieveUsecase) Execute(ctx context.Context, input RetrieveInput) (*RetrieveOutput, error) {
	if input.Query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	k := input.K
	if k <= 0 {
		k = u.opts.TopK
	}
	retrievalID := uuid.New().String()

	perFile := make([][]domain.ScoredDocument, len(input.Files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range input.Files {
		g.Go(func() error {
			docs, err := u.retrieveFile(gctx, retrievalID, input.Query, file, k)
			if err != nil {
				return err
			}
			perFile[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.ScoredDocument
	for _, docs := range perFile {
		out = append(out, docs...)
	}

	u.logger.Info("retrieval_completed",
		slog.String("retrieval_id", retrievalID),
		slog.Int("file_count", len(input.Files)),
		slog.Int("result_count", len(out)))
	return &RetrieveOutput{Documents: out}, nil
}

func (u *retrieveUsecase) retrieveFile(ctx context.Context, retrievalID, query string, file domain.FileDescriptor, k int) ([]domain.ScoredDocument, error) {
	mode := domain.SelectMode(file, u.opts.FullContextThreshold)
	switch mode {
	case domain.ModeFullContext:
		return u.fullContext(file), nil
	case domain.ModeChunkedVectorized:
		return u.searchChunks(ctx, retrievalID, query, file, k)
	case domain.ModeHybrid:
		docs := u.fullContext(file)
		chunked, err := u.searchChunks(ctx, retrievalID, query, file, k)
		if err != nil {
			return nil, err
		}
		return append(docs, chunked...), nil
	default:
		return nil, fmt.Errorf("unknown processing mode %q", mode)
	}
}

// fullContext emits the file's inline content as one unconditionally relevant
// document. Files without inline content contribute nothing.
func (u *retrieveUsecase) fullContext(file domain.FileDescriptor) []domain.ScoredDocument {
	if file.InlineContent == "" {
		return nil
	}
	return []domain.ScoredDocument{{
		Chunk: domain.Chunk{
			Text: file.InlineContent,
			Metadata: map[string]any{
				domain.MetaSourceFile:     file.Name,
				domain.MetaSource:         string(file.Source),
				domain.MetaProcessingMode: string(domain.ModeFullContext),
			},
		},
		Score: 1.0,
	}}
}

// searchChunks fans out one fusion search per expanded query variant, then
// dedupes and reranks the union. Variant results land in input-index slots so
// the final ordering never depends on completion order.
func (u *retrieveUsecase) searchChunks(ctx context.Context, retrievalID, query string, file domain.FileDescriptor, k int) ([]domain.ScoredDocument, error) {
	if file.CollectionName == "" {
		return nil, nil
	}
	ok, err := u.backend.HasCollection(ctx, file.CollectionName)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		u.logger.Warn("collection_check_failed",
			slog.String("retrieval_id", retrievalID),
			slog.String("collection", file.CollectionName),
			slog.String("error", err.Error()))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}

	variants := u.expander.Expand(query)
	perVariant := make([][]domain.ScoredDocument, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			// Over-fetch to give the reranker a wider pool.
			docs, err := u.searchVariant(gctx, variant, file.CollectionName, k*2)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				u.logger.Warn("variant_search_failed",
					slog.String("retrieval_id", retrievalID),
					slog.String("variant", variant),
					slog.String("collection", file.CollectionName),
					slog.String("error", err.Error()))
				return nil
			}
			perVariant[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pool []domain.Chunk
	for _, docs := range perVariant {
		for _, d := range docs {
			pool = append(pool, d.Chunk)
		}
	}
	unique := retrieval.Dedupe(pool)
	ranked := u.reranker.Rerank(ctx, query, unique, k)

	out := make([]domain.ScoredDocument, len(ranked))
	for i, d := range ranked {
		out[i] = withMode(d, domain.ModeChunkedVectorized)
	}
	return out, nil
}

func (u *retrieveUsecase) searchVariant(ctx context.Context, variant, collection string, limit int) ([]domain.ScoredDocument, error) {
	vec, err := u.embedder.Embed(ctx, variant, domain.QueryPrefix)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return u.fusion.Search(ctx, collection, vec, variant, limit)
}

// withMode stamps the processing mode into a copy of the document's metadata.
func withMode(doc domain.ScoredDocument, mode domain.ProcessingMode) domain.ScoredDocument {
	meta := make(map[string]any, len(doc.Chunk.Metadata)+1)
	for k, v := range doc.Chunk.Metadata {
		meta[k] = v
	}
	meta[domain.MetaProcessingMode] = string(mode)
	doc.Chunk.Metadata = meta
	return doc
}
