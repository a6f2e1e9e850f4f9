// Package httpapi exposes retrieval and ingestion over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	retrieveUsecase usecase.RetrieveUsecase
	ingestUsecase   usecase.IngestUsecase
	metrics         *Metrics
}

func NewHandler(retrieveUsecase usecase.RetrieveUsecase, ingestUsecase usecase.IngestUsecase, metrics *Metrics) *Handler {
	return &Handler{
		retrieveUsecase: retrieveUsecase,
		ingestUsecase:   ingestUsecase,
		metrics:         metrics,
	}
}

// Register mounts all routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/retrieve", h.Retrieve)
	e.POST("/v1/ingest", h.Ingest)
	e.GET("/v1/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

type FileRequest struct {
	Name           string `json:"name"`
	Source         string `json:"source"`
	SizeBytes      int64  `json:"size_bytes"`
	CollectionName string `json:"collection_name,omitempty"`
	InlineContent  string `json:"inline_content,omitempty"`
}

type RetrieveRequest struct {
	Query string        `json:"query"`
	Files []FileRequest `json:"files"`
	K     int           `json:"k,omitempty"`
}

type DocumentResponse struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type RetrieveResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

type IngestRequest struct {
	File    FileRequest `json:"file"`
	Content string      `json:"content"`
}

type IngestResponse struct {
	Mode       string `json:"mode"`
	ChunkCount int    `json:"chunk_count"`
}

// Retrieve handles POST /v1/retrieve.
func (h *Handler) Retrieve(ctx echo.Context) error {
	var req RetrieveRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Query == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing query"})
	}

	files := make([]domain.FileDescriptor, 0, len(req.Files))
	for _, f := range req.Files {
		source, ok := parseSource(f.Source)
		if !ok {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "unknown file source: " + f.Source})
		}
		files = append(files, domain.FileDescriptor{
			Name:           f.Name,
			Source:         source,
			SizeBytes:      f.SizeBytes,
			CollectionName: f.CollectionName,
			InlineContent:  f.InlineContent,
		})
	}

	start := time.Now()
	output, err := h.retrieveUsecase.Execute(ctx.Request().Context(), usecase.RetrieveInput{
		Query: req.Query,
		Files: files,
		K:     req.K,
	})
	h.metrics.ObserveRetrieval(time.Since(start), err)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	documents := make([]DocumentResponse, 0, len(output.Documents))
	for _, doc := range output.Documents {
		documents = append(documents, DocumentResponse{
			ID:       doc.Chunk.ID,
			Text:     doc.Chunk.Text,
			Score:    doc.Score,
			Metadata: doc.Chunk.Metadata,
		})
	}
	return ctx.JSON(http.StatusOK, RetrieveResponse{Documents: documents})
}

// Ingest handles POST /v1/ingest.
func (h *Handler) Ingest(ctx echo.Context) error {
	var req IngestRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	source, ok := parseSource(req.File.Source)
	if !ok {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "unknown file source: " + req.File.Source})
	}

	output, err := h.ingestUsecase.Execute(ctx.Request().Context(), usecase.IngestInput{
		File: domain.FileDescriptor{
			Name:           req.File.Name,
			Source:         source,
			SizeBytes:      req.File.SizeBytes,
			CollectionName: req.File.CollectionName,
			InlineContent:  req.File.InlineContent,
		},
		Content: req.Content,
	})
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	h.metrics.CountIngestedChunks(output.ChunkCount)

	return ctx.JSON(http.StatusOK, IngestResponse{
		Mode:       string(output.Mode),
		ChunkCount: output.ChunkCount,
	})
}

// Health handles GET /v1/health.
func (h *Handler) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func parseSource(s string) (domain.FileSource, bool) {
	switch domain.FileSource(s) {
	case domain.SourceKnowledgeBase, domain.SourceChatUpload, domain.SourceDirectUpload:
		return domain.FileSource(s), true
	}
	return "", false
}
