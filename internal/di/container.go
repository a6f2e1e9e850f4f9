// Package di wires configuration into concrete adapters and usecases.
package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"retrieval-orchestrator/internal/adapter/httpapi"
	"retrieval-orchestrator/internal/adapter/memstore"
	"retrieval-orchestrator/internal/adapter/ollama"
	"retrieval-orchestrator/internal/adapter/repository"
	"retrieval-orchestrator/internal/adapter/rerankapi"
	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/infra/config"
	"retrieval-orchestrator/internal/usecase"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	Backend domain.SearchBackend
	Writer  domain.ChunkWriter

	RetrieveUsecase usecase.RetrieveUsecase
	IngestUsecase   usecase.IngestUsecase

	Handler *httpapi.Handler
}

// NewApplicationComponents wires all dependencies from config. pool may be
// nil when cfg.Store is "memory".
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	var (
		backend domain.SearchBackend
		writer  domain.ChunkWriter
	)
	switch cfg.Store {
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("postgres store requires a connection pool")
		}
		pgBackend := repository.NewPostgresBackend(pool)
		backend = pgBackend
		writer = pgBackend
	case "memory":
		memBackend := memstore.NewStore()
		backend = memBackend
		writer = memBackend
	default:
		return nil, fmt.Errorf("unknown store: %q", cfg.Store)
	}

	var embedder domain.Embedder = ollama.NewEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, cfg.EmbedTimeoutSeconds, log)
	if cfg.EmbedCacheSize > 0 {
		caching, err := ollama.NewCachingEmbedder(embedder, cfg.EmbedCacheSize, cfg.EmbedRatePerSecond)
		if err != nil {
			return nil, fmt.Errorf("failed to create caching embedder: %w", err)
		}
		embedder = caching
	}

	var model domain.RelevanceModel
	if cfg.RerankEnabled && cfg.RerankerURL != "" {
		model = rerankapi.NewClient(
			cfg.RerankerURL,
			cfg.RerankerModel,
			time.Duration(cfg.RerankerTimeoutSeconds)*time.Second,
			log,
		)
		log.Info("reranker_enabled",
			slog.String("url", cfg.RerankerURL),
			slog.String("model", cfg.RerankerModel))
	}

	opts := usecase.RetrievalOptions{
		ChunkSize:            cfg.ChunkSize,
		ChunkOverlap:         cfg.ChunkOverlap,
		SemanticChunking:     cfg.SemanticChunking,
		QueryExpansion:       cfg.QueryExpansion,
		Rerank:               cfg.RerankEnabled,
		TopK:                 cfg.TopK,
		FullContextThreshold: cfg.FullContextThreshold,
	}

	retrieveUsecase := usecase.NewRetrieveUsecase(backend, embedder, model, opts, log)
	ingestUsecase := usecase.NewIngestUsecase(writer, embedder, opts, log)

	metrics := httpapi.NewMetrics(prometheus.DefaultRegisterer)
	handler := httpapi.NewHandler(retrieveUsecase, ingestUsecase, metrics)

	return &ApplicationComponents{
		Backend:         backend,
		Writer:          writer,
		RetrieveUsecase: retrieveUsecase,
		IngestUsecase:   ingestUsecase,
		Handler:         handler,
	}, nil
}
