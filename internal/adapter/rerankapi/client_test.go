package rerankapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"retrieval-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Predict_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req rerankRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)

		assert.Equal(t, "bge-reranker-v2-m3", req.Model)
		require.Len(t, req.Pairs, 2)
		assert.Equal(t, "what is a solar panel", req.Pairs[0].Query)
		assert.Equal(t, "panels convert sunlight", req.Pairs[0].Text)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{0.92, 0.15}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "bge-reranker-v2-m3", 30*time.Second, testLogger())

	scores, err := client.Predict(context.Background(), []domain.QueryDocumentPair{
		{Query: "what is a solar panel", Text: "panels convert sunlight"},
		{Query: "what is a solar panel", Text: "turbines use wind"},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.92, 0.15}, scores)
}

func TestClient_Predict_EmptyPairs(t *testing.T) {
	client := NewClient("http://localhost:8001", "bge-reranker-v2-m3", time.Second, testLogger())

	scores, err := client.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestClient_Predict_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bge-reranker-v2-m3", time.Second, testLogger())

	scores, err := client.Predict(context.Background(), []domain.QueryDocumentPair{
		{Query: "q", Text: "d"},
	})
	assert.Error(t, err)
	assert.Nil(t, scores)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_Predict_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bge-reranker-v2-m3", time.Second, testLogger())
	pairs := []domain.QueryDocumentPair{{Query: "q", Text: "d"}}

	for i := 0; i < 3; i++ {
		_, err := client.Predict(context.Background(), pairs)
		assert.Error(t, err)
	}

	// Breaker is open now; the request never reaches the server.
	_, err := client.Predict(context.Background(), pairs)
	assert.Error(t, err)
	assert.NotContains(t, err.Error(), "502")
}
