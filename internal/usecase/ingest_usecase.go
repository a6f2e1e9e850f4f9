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

// ingestEmbedConcurrency bounds parallel content-embedding calls so a large
// document does not flood the embedding service.
const ingestEmbedConcurrency = 4

// IngestInput defines the input parameters for Ingest.
type IngestInput struct {
	File    domain.FileDescriptor
	Content string // document text; falls back to File.InlineContent
}

// IngestOutput defines the output for Ingest.
type IngestOutput struct {
	Mode       domain.ProcessingMode
	ChunkCount int
}

// IngestUsecase prepares a file for retrieval: full-context files stay inline,
// chunked files are segmented, embedded with the content prefix, and written
// to the store under the file's collection.
type IngestUsecase interface {
	Execute(ctx context.Context, input IngestInput) (*IngestOutput, error)
}

type ingestUsecase struct {
	writer    domain.ChunkWriter
	embedder  domain.Embedder
	segmenter *retrieval.Segmenter
	opts      RetrievalOptions
	logger    *slog.Logger
}

// NewIngestUsecase creates a new IngestUsecase.
func NewIngestUsecase(
	writer domain.ChunkWriter,
	embedder domain.Embedder,
	opts RetrievalOptions,
	logger *slog.Logger,
) IngestUsecase {
	return &ingestUsecase{
		writer:    writer,
		embedder:  embedder,
		segmenter: retrieval.NewSegmenter(opts.ChunkSize, opts.ChunkOverlap, opts.SemanticChunking),
		opts:      opts,
		logger:    logger,
	}
}

func (u *ingestUsecase) Execute(ctx context.Context, input IngestInput) (*IngestOutput, error) {
	content := input.Content
	if content == "" {
		content = input.File.InlineContent
	}
	if content == "" {
		return nil, fmt.Errorf("file has no content")
	}

	mode := domain.SelectMode(input.File, u.opts.FullContextThreshold)
	if mode == domain.ModeFullContext {
		// Served inline at query time; nothing to index.
		return &IngestOutput{Mode: mode, ChunkCount: 1}, nil
	}
	if input.File.CollectionName == "" {
		return nil, fmt.Errorf("chunked file needs a collection name")
	}

	texts := u.segmenter.Segment(content)
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:   uuid.New().String(),
			Text: text,
			Metadata: map[string]any{
				domain.MetaSourceFile:     input.File.Name,
				domain.MetaSource:         string(input.File.Source),
				domain.MetaChunkIndex:     i,
				domain.MetaTotalChunks:    len(texts),
				domain.MetaProcessingMode: string(domain.ModeChunkedVectorized),
				domain.MetaCollection:     input.File.CollectionName,
			},
		}
	}

	embeddings := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestEmbedConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			vec, err := u.embedder.Embed(gctx, chunk.Text, domain.ContentPrefix)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := u.writer.AddChunks(ctx, input.File.CollectionName, chunks, embeddings); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	u.logger.Info("file_ingested",
		slog.String("file", input.File.Name),
		slog.String("collection", input.File.CollectionName),
		slog.String("mode", string(mode)),
		slog.Int("chunk_count", len(chunks)))
	return &IngestOutput{Mode: mode, ChunkCount: len(chunks)}, nil
}
