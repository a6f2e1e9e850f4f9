package ollama

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"retrieval-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmbedder_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req embedRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)

		assert.Equal(t, "mxbai-embed-large", req.Model)
		require.Len(t, req.Input, 1)
		assert.Equal(t, "query: what is hybrid search", req.Input[0])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	embedder := NewEmbedder(server.URL, "mxbai-embed-large", 30, testLogger())

	vec, err := embedder.Embed(context.Background(), "what is hybrid search", domain.QueryPrefix)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedder_Embed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder := NewEmbedder(server.URL, "mxbai-embed-large", 30, testLogger())

	vec, err := embedder.Embed(context.Background(), "text", "")
	assert.Error(t, err)
	assert.Nil(t, vec)
	assert.Contains(t, err.Error(), "500")
}

func TestEmbedder_Embed_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer server.Close()

	embedder := NewEmbedder(server.URL, "mxbai-embed-large", 30, testLogger())

	_, err := embedder.Embed(context.Background(), "text", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no embeddings")
}

func TestCachingEmbedder_HitsCacheOnRepeat(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.5, 0.5}},
		})
	}))
	defer server.Close()

	inner := NewEmbedder(server.URL, "mxbai-embed-large", 30, testLogger())
	embedder, err := NewCachingEmbedder(inner, 16, 0)
	require.NoError(t, err)

	first, err := embedder.Embed(context.Background(), "same text", domain.QueryPrefix)
	require.NoError(t, err)
	second, err := embedder.Embed(context.Background(), "same text", domain.QueryPrefix)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachingEmbedder_PrefixSeparatesEntries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.5, 0.5}},
		})
	}))
	defer server.Close()

	inner := NewEmbedder(server.URL, "mxbai-embed-large", 30, testLogger())
	embedder, err := NewCachingEmbedder(inner, 16, 0)
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "same text", domain.QueryPrefix)
	require.NoError(t, err)
	_, err = embedder.Embed(context.Background(), "same text", domain.ContentPrefix)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}
