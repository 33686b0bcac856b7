package hybridstore

import (
	"context"
	"encoding/json"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
)

// getCached/setCached/invalidateCache mirror the embedding package's redis
// cache shape, applied here to GetByHash results instead of embedding
// vectors, so a read-heavy hybrid deployment can skip the primary's disk
// lookup for hot hashes.

func cacheKey(hash string) string { return "hybrid:memory:" + hash }

func (s *Store) getCached(ctx context.Context, hash string) (*memory.Memory, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, cacheKey(hash)).Bytes()
	if err != nil {
		return nil, false
	}
	var m memory.Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (s *Store) setCached(ctx context.Context, hash string, m *memory.Memory) {
	if s.cache == nil || m == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	s.cache.Set(ctx, cacheKey(hash), data, s.cacheTTL)
}

func (s *Store) invalidateCache(ctx context.Context, hash string) {
	if s.cache == nil {
		return
	}
	s.cache.Del(ctx, cacheKey(hash))
}
