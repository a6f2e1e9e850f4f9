package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env   string
	Port  string
	Store string // "postgres" or "memory"

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	OllamaURL           string
	EmbeddingModel      string
	EmbedTimeoutSeconds int
	EmbedCacheSize      int
	EmbedRatePerSecond  float64

	RerankerURL            string
	RerankerModel          string
	RerankerTimeoutSeconds int

	ChunkSize            int
	ChunkOverlap         int
	SemanticChunking     bool
	QueryExpansion       bool
	RerankEnabled        bool
	TopK                 int
	FullContextThreshold int64
}

func Load() *Config {
	return &Config{
		Env:   getEnv("ENV", "development"),
		Port:  getEnv("PORT", "9020"),
		Store: getEnv("STORE", "postgres"),

		DBHost:     getEnv("DB_HOST", "retrieval-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "retrieval_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "retrieval_password"),
		DBName:     getEnv("DB_NAME", "retrieval_db"),

		OllamaURL:           getEnv("OLLAMA_URL", "http://ollama:11434"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "mxbai-embed-large"),
		EmbedTimeoutSeconds: getEnvInt("EMBED_TIMEOUT_SECONDS", 30),
		EmbedCacheSize:      getEnvInt("EMBED_CACHE_SIZE", 1024),
		EmbedRatePerSecond:  getEnvFloat("EMBED_RATE_PER_SECOND", 0),

		RerankerURL:            getEnv("RERANKER_URL", ""),
		RerankerModel:          getEnv("RERANKER_MODEL", "bge-reranker-v2-m3"),
		RerankerTimeoutSeconds: getEnvInt("RERANKER_TIMEOUT_SECONDS", 30),

		ChunkSize:            getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:         getEnvInt("CHUNK_OVERLAP", 200),
		SemanticChunking:     getEnvBool("SEMANTIC_CHUNKING", false),
		QueryExpansion:       getEnvBool("QUERY_EXPANSION", true),
		RerankEnabled:        getEnvBool("RERANK_ENABLED", true),
		TopK:                 getEnvInt("TOP_K", 5),
		FullContextThreshold: int64(getEnvInt("FULL_CONTEXT_THRESHOLD_BYTES", 50*1024)),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getSecret reads a value from the environment, or from the file named by
// fileEnvKey (docker secrets mount), or falls back.
func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
