package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "9020", cfg.Port)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "mxbai-embed-large", cfg.EmbeddingModel)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.False(t, cfg.SemanticChunking)
	assert.True(t, cfg.QueryExpansion)
	assert.True(t, cfg.RerankEnabled)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, int64(50*1024), cfg.FullContextThreshold)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("QUERY_EXPANSION", "false")
	t.Setenv("EMBED_RATE_PER_SECOND", "2.5")
	t.Setenv("FULL_CONTEXT_THRESHOLD_BYTES", "1024")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.False(t, cfg.QueryExpansion)
	assert.Equal(t, 2.5, cfg.EmbedRatePerSecond)
	assert.Equal(t, int64(1024), cfg.FullContextThreshold)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("TOP_K", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5, cfg.TopK)
}

func TestGetSecret_PrefersEnvOverFile(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(secretFile, []byte("from-file\n"), 0o600))

	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("DB_PASSWORD_FILE", secretFile)

	assert.Equal(t, "from-env", getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "fallback"))
}

func TestGetSecret_ReadsFile(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(secretFile, []byte("from-file\n"), 0o600))

	t.Setenv("DB_PASSWORD_FILE", secretFile)

	assert.Equal(t, "from-file", getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "fallback"))
}

func TestGetSecret_Fallback(t *testing.T) {
	assert.Equal(t, "fallback", getSecret("NO_SUCH_KEY", "NO_SUCH_KEY_FILE", "fallback"))
}
