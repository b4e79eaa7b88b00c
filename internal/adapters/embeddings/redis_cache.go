package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/pkg/logger"
)

const defaultCacheTTL = 24 * time.Hour

// Cache is the hot-tier surface the cached repository needs. The Redis
// adapter client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// store is the durable tier behind the cache.
type store interface {
	Get(ctx context.Context, textHash string) ([]float32, bool)
	Set(ctx context.Context, textHash string, embedding []float32, model string, textLength int) error
}

// CachedRepository fronts the Postgres embedding store with a Redis
// read-through tier, skipping a database round trip for hot texts. Redis is
// strictly an accelerator here: every cache failure falls back to Postgres
// and the decision flow never notices.
type CachedRepository struct {
	inner store
	cache Cache
	ttl   time.Duration
}

// NewCachedRepository wraps a durable embedding store with a Redis hot tier.
// ttl <= 0 selects the default.
func NewCachedRepository(inner store, cache Cache, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedRepository{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

// Get checks Redis first and falls back to the durable store, repopulating
// the hot tier on a durable hit.
func (r *CachedRepository) Get(ctx context.Context, textHash string) ([]float32, bool) {
	payload, err := r.cache.Get(ctx, cacheKey(textHash)).Result()
	if err == nil {
		var embedding []float32
		if unmarshalErr := json.Unmarshal([]byte(payload), &embedding); unmarshalErr == nil {
			return embedding, true
		}
		logger.Warn("corrupt cached embedding, falling back to store",
			zap.String("hash", textHash[:min(12, len(textHash))]),
		)
	} else if err != redis.Nil {
		logger.Warn("embedding cache read failed", zap.Error(err))
	}

	embedding, ok := r.inner.Get(ctx, textHash)
	if !ok {
		return nil, false
	}

	r.storeHot(ctx, textHash, embedding)
	return embedding, true
}

// Set writes through: the durable store first, then the hot tier.
func (r *CachedRepository) Set(ctx context.Context, textHash string, embedding []float32, model string, textLength int) error {
	if err := r.inner.Set(ctx, textHash, embedding, model, textLength); err != nil {
		return err
	}

	r.storeHot(ctx, textHash, embedding)
	return nil
}

func (r *CachedRepository) storeHot(ctx context.Context, textHash string, embedding []float32) {
	payload, err := json.Marshal(embedding)
	if err != nil {
		logger.Warn("failed to serialize embedding for cache", zap.Error(err))
		return
	}

	if err := r.cache.Set(ctx, cacheKey(textHash), payload, r.ttl).Err(); err != nil {
		logger.Warn("embedding cache write failed", zap.Error(err))
	}
}

func cacheKey(textHash string) string {
	return fmt.Sprintf("embedding:%s", textHash)
}
