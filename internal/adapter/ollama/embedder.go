// Package ollama adapts the Ollama embeddings API to the domain Embedder
// interface, with an optional caching and rate-limiting wrapper.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/infra/httpclient"
)

type Embedder struct {
	BaseURL string
	Model   string
	Client  *http.Client
	Logger  *slog.Logger
}

var _ domain.Embedder = (*Embedder)(nil)

func NewEmbedder(baseURL, model string, timeoutSeconds int, logger *slog.Logger) *Embedder {
	timeout := 30 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &Embedder{
		BaseURL: baseURL,
		Model:   model,
		Client:  httpclient.NewPooledClient(timeout),
		Logger:  logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed encodes one text. The prefix is prepended before encoding so that
// asymmetric models see queries and passages differently.
func (e *Embedder) Embed(ctx context.Context, text string, prefix string) ([]float32, error) {
	start := time.Now()

	reqBody := embedRequest{
		Model: e.Model,
		Input: []string{prefix + text},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		e.Logger.Error("ollama_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		e.Logger.Error("ollama_embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("ollama returned status: %d", resp.StatusCode)
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respBody.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}

	return respBody.Embeddings[0], nil
}
