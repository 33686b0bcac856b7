package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachingProvider wraps a Provider with a redis-backed TTL cache keyed on a
// hash of the input text, backed by go-redis so it can be shared across
// processes. cmd/mnemod wraps only the remote (cloud) provider with one, and
// only when a Redis address is configured.
type CachingProvider struct {
	inner  Provider
	client *redis.Client
	ttl    time.Duration
	prefix string

	hits   int64
	misses int64
}

// NewCachingProvider wraps inner with a redis cache under prefix.
func NewCachingProvider(inner Provider, client *redis.Client, ttl time.Duration, prefix string) *CachingProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachingProvider{inner: inner, client: client, ttl: ttl, prefix: prefix}
}

func (c *CachingProvider) Dimensions() int { return c.inner.Dimensions() }

func (c *CachingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if cached, ok := c.get(ctx, key); ok {
		atomic.AddInt64(&c.hits, 1)
		return cached, nil
	}
	atomic.AddInt64(&c.misses, 1)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, vec)
	return vec, nil
}

func (c *CachingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var misses []int
	var missTexts []string

	for i, t := range texts {
		if cached, ok := c.get(ctx, c.cacheKey(t)); ok {
			out[i] = cached
			atomic.AddInt64(&c.hits, 1)
			continue
		}
		misses = append(misses, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	atomic.AddInt64(&c.misses, int64(len(missTexts)))
	computed, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range misses {
		out[idx] = computed[j]
		c.set(ctx, c.cacheKey(missTexts[j]), computed[j])
	}
	return out, nil
}

// Stats reports cumulative hit/miss counters since process start.
type Stats struct {
	Hits   int64
	Misses int64
}

func (c *CachingProvider) Stats() Stats {
	return Stats{Hits: atomic.LoadInt64(&c.hits), Misses: atomic.LoadInt64(&c.misses)}
}

func (c *CachingProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%x", c.prefix, sum)
}

func (c *CachingProvider) get(ctx context.Context, key string) ([]float32, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *CachingProvider) set(ctx context.Context, key string, vec []float32) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, c.ttl)
}
