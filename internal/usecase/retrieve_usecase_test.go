package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSearchBackend is a test double for domain.SearchBackend.
type MockSearchBackend struct {
	mock.Mock
}

func (m *MockSearchBackend) TopKByVector(ctx context.Context, collection string, queryVector []float32, k int) ([]domain.VectorHit, error) {
	args := m.Called(ctx, collection, queryVector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VectorHit), args.Error(1)
}

func (m *MockSearchBackend) TopKByLexicalMatch(ctx context.Context, collection string, queryText string, k int) ([]domain.LexicalHit, error) {
	args := m.Called(ctx, collection, queryText, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LexicalHit), args.Error(1)
}

func (m *MockSearchBackend) HasCollection(ctx context.Context, collection string) (bool, error) {
	args := m.Called(ctx, collection)
	return args.Bool(0), args.Error(1)
}

// MockEmbedder is a test double for domain.Embedder.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text, prefix string) ([]float32, error) {
	args := m.Called(ctx, text, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func chunkedOpts() usecase.RetrievalOptions {
	opts := usecase.DefaultRetrievalOptions()
	opts.QueryExpansion = false
	return opts
}

func TestRetrieve_FullContextMakesNoBackendCalls(t *testing.T) {
	backend := new(MockSearchBackend)
	embedder := new(MockEmbedder)

	u := usecase.NewRetrieveUsecase(backend, embedder, nil, usecase.DefaultRetrievalOptions(), testLogger())
	out, err := u.Execute(context.Background(), usecase.RetrieveInput{
		Query: "What is retrieval?",
		Files: []domain.FileDescriptor{{
			Name:          "chat.txt",
			Source:        domain.SourceChatUpload,
			InlineContent: "Retrieval means...",
		}},
	})
	require.NoError(t, err)

	require.Len(t, out.Documents, 1)
	doc := out.Documents[0]
	assert.Equal(t, 1.0, doc.Score)
	assert.Equal(t, "Retrieval means...", doc.Chunk.Text)
	assert.Equal(t, string(domain.ModeFullContext), doc.Chunk.Metadata[domain.MetaProcessingMode])

	backend.AssertNotCalled(t, "HasCollection", mock.Anything, mock.Anything)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_FullContextWithoutInlineContentIsEmpty(t *testing.T) {
	u := usecase.NewRetrieveUsecase(new(MockSearchBackend), new(MockEmbedder), nil, usecase.DefaultRetrievalOptions(), testLogger())
	out, err := u.Execute(context.Background(), usecase.RetrieveInput{
		Query: "anything",
		Files: []domain.FileDescriptor{{Source: domain.SourceChatUpload}},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Documents)
}

func TestRetrieve_ChunkedEndToEnd(t *testing.T) {
	backend := new(MockSearchBackend)
	embedder := new(MockEmbedder)

	mk := func(id, text string) domain.Chunk { return domain.Chunk{ID: id, Text: text} }
	embedder.On("Embed", mock.Anything, "refund policy", domain.QueryPrefix).Return([]float32{0.5}, nil)
	backend.On("HasCollection", mock.Anything, "kb").Return(true, nil)
	backend.On("TopKByVector", mock.Anything, "kb", []float32{0.5}, 10).Return([]domain.VectorHit{
		{Chunk: mk("v1", "our refund policy explained"), Distance: 0.2},
		{Chunk: mk("v2", "refund window details"), Distance: 0.3},
		{Chunk: mk("v3", "shipping information"), Distance: 0.4},
	}, nil)
	backend.On("TopKByLexicalMatch", mock.Anything, "kb", "refund policy", 10).Return([]domain.LexicalHit{
		{Chunk: mk("v2", "refund window details"), Rank: 0.5},
		{Chunk: mk("l1", "policy for returns"), Rank: 0.4},
	}, nil)

	u := usecase.NewRetrieveUsecase(backend, embedder, nil, chunkedOpts(), testLogger())
	input := usecase.RetrieveInput{
		Query: "refund policy",
		Files: []domain.FileDescriptor{{
			Name:           "kb.md",
			Source:         domain.SourceKnowledgeBase,
			CollectionName: "kb",
		}},
	}
	out, err := u.Execute(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, out.Documents, 4, "overlapping hit fuses into one row")
	ids := make([]string, len(out.Documents))
	for i, d := range out.Documents {
		ids[i] = d.Chunk.ID
		assert.Equal(t, string(domain.ModeChunkedVectorized), d.Chunk.Metadata[domain.MetaProcessingMode])
	}
	assert.Equal(t, []string{"v1", "v2", "l1", "v3"}, ids, "overlap rerank reorders the fused pool")

	// Idempotence: a deterministic backend yields identical ordered output.
	again, err := u.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, out.Documents, again.Documents)
}

func TestRetrieve_SkipsFileWithoutCollection(t *testing.T) {
	backend := new(MockSearchBackend)
	u := usecase.NewRetrieveUsecase(backend, new(MockEmbedder), nil, chunkedOpts(), testLogger())

	out, err := u.Execute(context.Background(), usecase.RetrieveInput{
		Query: "q",
		Files: []domain.FileDescriptor{{Source: domain.SourceKnowledgeBase}},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Documents)
	backend.AssertNotCalled(t, "HasCollection", mock.Anything, mock.Anything)
}

func TestRetrieve_SkipsUnindexedCollection(t *testing.T) {
	backend := new(MockSearchBackend)
	backend.On("HasCollection", mock.Anything, "empty").Return(false, nil)

	u := usecase.NewRetrieveUsecase(backend, new(MockEmbedder), nil, chunkedOpts(), testLogger())
	out, err := u.Execute(context.Background(), usecase.RetrieveInput{
		Query: "q",
		Files: []domain.FileDescriptor{{Source: domain.SourceKnowledgeBase, CollectionName: "empty"}},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Documents)
	backend.AssertNotCalled(t, "TopKByVector", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_FailedVariantDegradesGracefully(t *testing.T) {
	backend := new(MockSearchBackend)
	embedder := new(MockEmbedder)

	opts := usecase.DefaultRetrievalOptions()
	opts.Rerank = false

	embedder.On("Embed", mock.Anything, "What is X?", domain.QueryPrefix).Return([]float32{1}, nil)
	embedder.On("Embed", mock.Anything, "How is X?", domain.QueryPrefix).Return(nil, assert.AnError)
	embedder.On("Embed", mock.Anything, "Why is X?", domain.QueryPrefix).Return([]float32{3}, nil)

	backend.On("HasCollection", mock.Anything, "kb").Return(true, nil)
	backend.On("TopKByVector", mock.Anything, "kb", []float32{1}, 10).Return([]domain.VectorHit{
		{Chunk: domain.Chunk{ID: "a", Text: "alpha"}, Distance: 0.1},
	}, nil)
	backend.On("TopKByVector", mock.Anything, "kb", []float32{3}, 10).Return([]domain.VectorHit{
		{Chunk: domain.Chunk{ID: "b", Text: "beta"}, Distance: 0.2},
	}, nil)
	backend.On("TopKByLexicalMatch", mock.Anything, "kb", mock.Anything, 10).Return([]domain.LexicalHit{}, nil)

	u := usecase.NewRetrieveUsecase(backend, embedder, nil, opts, testLogger())
	out, err := u.Execute(context.Background(), usecase.RetrieveInput{
		Query: "What is X?",
		Files: []domain.FileDescriptor{{Source: domain.SourceKnowledgeBase, CollectionName: "kb"}},
	})
	require.NoError(t, err, "one failed variant never aborts the retrieval")

	require.Len(t, out.Documents, 2)
	assert.Equal(t, "a", out.Documents[0].Chunk.ID, "surviving variants keep input order")
	assert.Equal(t, "b", out.Documents[1].Chunk.ID)
}

func TestRetrieve_MultipleFilesKeepInputOrder(t *testing.T) {
	backend := new(MockSearchBackend)
	embedder := new(MockEmbedder)

	embedder.On("Embed", mock.Anything, "q", domain.QueryPrefix).Return([]float32{1}, nil)
	backend.On("HasCollection", mock.Anything, "kb").Return(true, nil)
	backend.On("TopKByVector", mock.Anything, "kb", mock.Anything, 10).Return([]domain.VectorHit{
		{Chunk: domain.Chunk{ID: "c1", Text: "indexed chunk"}, Distance: 0.2},
	}, nil)
	backend.On("TopKByLexicalMatch", mock.Anything, "kb", mock.Anything, 10).Return([]domain.LexicalHit{}, nil)

	opts := chunkedOpts()
	opts.Rerank = false
	u := usecase.NewRetrieveUsecase(backend, embedder, nil, opts, testLogger())
	out, err := u.Execute(context.Background(), usecase.RetrieveInput{
		Query: "q",
		Files: []domain.FileDescriptor{
			{Source: domain.SourceChatUpload, InlineContent: "inline first"},
			{Source: domain.SourceKnowledgeBase, CollectionName: "kb"},
		},
	})
	require.NoError(t, err)

	require.Len(t, out.Documents, 2)
	assert.Equal(t, "inline first", out.Documents[0].Chunk.Text, "per-file results concatenate in input order")
	assert.Equal(t, "c1", out.Documents[1].Chunk.ID)
}

func TestRetrieve_EmptyQueryIsRejected(t *testing.T) {
	u := usecase.NewRetrieveUsecase(new(MockSearchBackend), new(MockEmbedder), nil, usecase.DefaultRetrievalOptions(), testLogger())
	_, err := u.Execute(context.Background(), usecase.RetrieveInput{Query: ""})
	assert.Error(t, err)
}
