package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"retrieval-orchestrator/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresBackend implements domain.SearchBackend over a pgvector-enabled
// Postgres. One table holds every collection's chunks; the dense channel
// orders by cosine distance, the sparse channel by ts_rank_cd over a simple
// tsvector, matching rows only.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a new PostgresBackend.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

var (
	_ domain.SearchBackend  = (*PostgresBackend)(nil)
	_ domain.HybridSearcher = (*PostgresBackend)(nil)
	_ domain.ChunkWriter    = (*PostgresBackend)(nil)
)

func (b *PostgresBackend) TopKByVector(ctx context.Context, collection string, queryVector []float32, k int) ([]domain.VectorHit, error) {
	query := `
		SELECT id, text, vmetadata, (embedding <=> $2) AS v_dist
		FROM document_chunk
		WHERE collection_name = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := b.pool.Query(ctx, query, collection, pgvector.NewVector(queryVector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector channel: %w", err)
	}
	defer rows.Close()

	var hits []domain.VectorHit
	for rows.Next() {
		var (
			chunk domain.Chunk
			meta  []byte
			dist  float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &meta, &dist); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		if chunk.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		hits = append(hits, domain.VectorHit{Chunk: chunk, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

func (b *PostgresBackend) TopKByLexicalMatch(ctx context.Context, collection string, queryText string, k int) ([]domain.LexicalHit, error) {
	query := `
		SELECT id, text, vmetadata,
		       ts_rank_cd(to_tsvector('simple', text), plainto_tsquery($2)) AS rank
		FROM document_chunk
		WHERE collection_name = $1
		  AND to_tsvector('simple', text) @@ plainto_tsquery($2)
		ORDER BY rank DESC
		LIMIT $3
	`
	// The standalone lexical channel has no query embedding, so it cannot
	// report a vector distance. Hybrid callers go through SearchHybrid, which
	// computes both terms in one pass.
	rows, err := b.pool.Query(ctx, query, collection, queryText, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query lexical channel: %w", err)
	}
	defer rows.Close()

	var hits []domain.LexicalHit
	for rows.Next() {
		var (
			chunk domain.Chunk
			meta  []byte
			rank  float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &meta, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan lexical hit: %w", err)
		}
		if chunk.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		hits = append(hits, domain.LexicalHit{Chunk: chunk, Rank: rank})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

// SearchHybrid runs the whole fetch-union-fuse as one server-side query:
// top-k by vector distance unioned with top-k lexical matches, re-ranked by
// (1 - v_dist) + rank and bounded to k rows.
func (b *PostgresBackend) SearchHybrid(ctx context.Context, collection string, queryVector []float32, queryText string, k int) ([]domain.ScoredDocument, error) {
	query := `
		WITH vector_top AS (
			SELECT id, text, vmetadata,
			       (embedding <=> $2) AS v_dist,
			       ts_rank_cd(to_tsvector('simple', text), plainto_tsquery($3)) AS lex_rank
			FROM document_chunk
			WHERE collection_name = $1
			ORDER BY embedding <=> $2
			LIMIT $4
		),
		lexical_top AS (
			SELECT id, text, vmetadata,
			       (embedding <=> $2) AS v_dist,
			       ts_rank_cd(to_tsvector('simple', text), plainto_tsquery($3)) AS lex_rank
			FROM document_chunk
			WHERE collection_name = $1
			  AND to_tsvector('simple', text) @@ plainto_tsquery($3)
			ORDER BY lex_rank DESC
			LIMIT $4
		),
		merged AS (
			SELECT * FROM vector_top
			UNION
			SELECT * FROM lexical_top
		)
		SELECT id, text, vmetadata, (1 - v_dist) + lex_rank AS score
		FROM merged
		ORDER BY score DESC
		LIMIT $4
	`
	rows, err := b.pool.Query(ctx, query, collection, pgvector.NewVector(queryVector), queryText, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query hybrid search: %w", err)
	}
	defer rows.Close()

	var docs []domain.ScoredDocument
	for rows.Next() {
		var (
			chunk domain.Chunk
			meta  []byte
			score float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &meta, &score); err != nil {
			return nil, fmt.Errorf("failed to scan hybrid row: %w", err)
		}
		if chunk.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		docs = append(docs, domain.ScoredDocument{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return docs, nil
}

func (b *PostgresBackend) HasCollection(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM document_chunk WHERE collection_name = $1)`,
		collection,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return exists, nil
}

func (b *PostgresBackend) AddChunks(ctx context.Context, collection string, chunks []domain.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	batch := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for chunk %s: %w", chunk.ID, err)
		}
		batch[i] = []interface{}{chunk.ID, collection, chunk.Text, meta, pgvector.NewVector(embeddings[i])}
	}

	_, err := b.pool.CopyFrom(
		ctx,
		pgx.Identifier{"document_chunk"},
		[]string{"id", "collection_name", "text", "vmetadata", "embedding"},
		pgx.CopyFromRows(batch),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}
	return nil
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
	}
	return meta, nil
}
