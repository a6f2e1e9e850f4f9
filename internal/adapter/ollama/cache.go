package ollama

import (
	"context"
	"fmt"

	"retrieval-orchestrator/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// CachingEmbedder wraps an Embedder with an LRU cache keyed on prefix+text
// and a rate limiter on cache misses. Query expansion re-embeds near-identical
// variants, so the hit rate is high in practice.
type CachingEmbedder struct {
	inner   domain.Embedder
	cache   *lru.Cache[string, []float32]
	limiter *rate.Limiter
}

var _ domain.Embedder = (*CachingEmbedder)(nil)

// NewCachingEmbedder creates the wrapper. cacheSize must be positive;
// ratePerSecond <= 0 disables rate limiting.
func NewCachingEmbedder(inner domain.Embedder, cacheSize int, ratePerSecond float64) (*CachingEmbedder, error) {
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &CachingEmbedder{
		inner:   inner,
		cache:   cache,
		limiter: limiter,
	}, nil
}

func (c *CachingEmbedder) Embed(ctx context.Context, text string, prefix string) ([]float32, error) {
	key := prefix + "\x00" + text
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit wait: %w", err)
	}

	vec, err := c.inner.Embed(ctx, text, prefix)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}
