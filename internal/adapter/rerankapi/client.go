// Package rerankapi adapts an external cross-encoder scoring service to the
// domain RelevanceModel interface. The service is a sidecar serving a
// BGE-style reranker; calls go through a circuit breaker so that a flapping
// sidecar degrades retrieval to overlap scoring instead of failing it.
package rerankapi

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

	"github.com/sony/gobreaker/v2"
)

type Client struct {
	baseURL string
	model   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]float64]
	logger  *slog.Logger
}

var _ domain.RelevanceModel = (*Client)(nil)

func NewClient(baseURL, model string, timeout time.Duration, logger *slog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:    "reranker",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("reranker_breaker_state_change",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		client:  httpclient.NewPooledClient(timeout),
		breaker: gobreaker.NewCircuitBreaker[[]float64](settings),
		logger:  logger,
	}
}

type rerankRequest struct {
	Model string       `json:"model"`
	Pairs []rerankPair `json:"pairs"`
}

type rerankPair struct {
	Query string `json:"query"`
	Text  string `json:"text"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Predict sends the query-document pairs and returns one relevance score per
// pair, in input order.
func (c *Client) Predict(ctx context.Context, pairs []domain.QueryDocumentPair) ([]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	start := time.Now()
	scores, err := c.breaker.Execute(func() ([]float64, error) {
		return c.predict(ctx, pairs)
	})
	if err != nil {
		c.logger.Warn("rerank_predict_failed",
			slog.String("error", err.Error()),
			slog.Int("pair_count", len(pairs)),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, err
	}

	return scores, nil
}

func (c *Client) predict(ctx context.Context, pairs []domain.QueryDocumentPair) ([]float64, error) {
	reqBody := rerankRequest{
		Model: c.model,
		Pairs: make([]rerankPair, len(pairs)),
	}
	for i, p := range pairs {
		reqBody.Pairs[i] = rerankPair{Query: p.Query, Text: p.Text}
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call reranker: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reranker returned status: %d", resp.StatusCode)
	}

	var respBody rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return respBody.Scores, nil
}
