// Package embcache memoizes embeddings: an in-process LRU for hot questions
// in front of a shared key-value store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/db"
	"github.com/kailas-cloud/taskpilot/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// Cache layers, used as metric label values.
const (
	layerMemory = "memory"
	layerStore  = "redis"
)

// DefaultMemorySize is the LRU capacity when Options.MemorySize is zero.
const DefaultMemorySize = 1024

// Store is the key-value backend of the embedding cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures the cache.
type Options struct {
	// Model namespaces keys so switching models never serves stale vectors.
	Model string
	// MemorySize is the LRU capacity; negative disables the memory layer.
	MemorySize int
	// TTL expires store entries; zero keeps them forever.
	TTL time.Duration
}

// CachedEmbedder caches embeddings in memory and in a key-value store.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      Store
	memory     *lru.Cache[string, []float32]
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. s may be nil for a memory-only cache.
// cacheTotal is a counter vec with labels "layer" and "result", passed explicitly.
func New(
	inner domain.Embedder,
	s Store,
	opts Options,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) (*CachedEmbedder, error) {
	c := &CachedEmbedder{
		inner:      inner,
		store:      s,
		model:      opts.Model,
		ttl:        opts.TTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}

	size := opts.MemorySize
	if size == 0 {
		size = DefaultMemorySize
	}
	if size > 0 {
		mem, err := lru.New[string, []float32](size)
		if err != nil {
			return nil, fmt.Errorf("create embedding lru: %w", err)
		}
		c.memory = mem
	}
	return c, nil
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hits report zero tokens since nothing was billed.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if c.memory != nil {
		if vec, ok := c.memory.Get(key); ok {
			c.incCache(layerMemory, "hit")
			return domain.EmbeddingResult{Embedding: vec}, nil
		}
		c.incCache(layerMemory, "miss")
	}

	if c.store != nil {
		if vec, ok := c.getFromStore(ctx, key); ok {
			c.incCache(layerStore, "hit")
			c.remember(key, vec)
			return domain.EmbeddingResult{Embedding: vec}, nil
		}
		c.incCache(layerStore, "miss")
	}

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.remember(key, result.Embedding)
	c.putToStore(ctx, key, result.Embedding)
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) incCache(layer, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(layer, result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	if c.model == "" {
		return cacheKeyPrefix + hex.EncodeToString(h[:])
	}
	return cacheKeyPrefix + c.model + ":" + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) remember(key string, vec []float32) {
	if c.memory != nil && len(vec) > 0 {
		c.memory.Add(key, vec)
	}
}

func (c *CachedEmbedder) getFromStore(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := db.DecodeVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToStore(ctx context.Context, key string, vec []float32) {
	if c.store == nil || len(vec) == 0 {
		return
	}
	data := []byte(db.EncodeVector(vec))

	var err error
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
