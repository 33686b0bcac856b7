// Package storage defines the common contract every backend (local, cloud,
// hybrid) implements. The consolidation pipeline and the service facade rely
// on this interface alone; neither knows which concrete backend is active.
package storage

import (
	"context"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
)

// SearchResult pairs a Memory with its similarity/distance from a query.
type SearchResult struct {
	Memory     *memory.Memory
	Similarity float64
	Distance   float64
}

// Filter narrows get_all_memories/count_all_memories/search_by_tag calls.
type Filter struct {
	MemoryType string
	Tags       []string
	MatchAll   bool // true = AND all tags, false = OR (default)
	TimeStart  int64
	TimeEnd    int64
	Limit      int
	Offset     int
}

// SyncStatus is the hybrid store's get_sync_status() response.
type SyncStatus struct {
	IsRunning       bool
	ActivelySyncing bool
	Pending         int
	LastSyncAt      float64
	Failed          int
}

// Version is the stats schema version reported by get_stats across backends.
const Version = "1"

// Stats summarizes backend-wide counters exposed by health/get_stats calls.
type Stats struct {
	TotalMemories int64
	VectorCount   int64
	CapacityUsed  float64 // fraction of published index limit, 0..1+

	Backend            string
	UniqueTags         int64
	MemoriesThisWeek   int64
	DatabaseSizeBytes  int64
	DatabaseSizeMB     float64
	EmbeddingModel     string
	EmbeddingDimension int
	Version            string
}

// Backend is the common contract implemented by localstore, cloudstore, and
// hybridstore. Every method that can fail returns a *merrors.Error.
type Backend interface {
	// Store inserts memory if its ContentHash is new; returns (false, nil)
	// when it already existed, an idempotent duplicate rather than an error.
	Store(ctx context.Context, m *memory.Memory) (created bool, err error)

	GetByHash(ctx context.Context, hash string) (*memory.Memory, error)
	GetAll(ctx context.Context, f Filter) ([]*memory.Memory, error)
	GetRecent(ctx context.Context, n int) ([]*memory.Memory, error)
	GetMemoryTimestamps(ctx context.Context) (map[string]float64, error)
	GetLargest(ctx context.Context, n int) ([]*memory.Memory, error)
	CountAll(ctx context.Context, f Filter) (int64, error)
	GetAllTags(ctx context.Context) ([]string, error)

	Retrieve(ctx context.Context, query string, n int, similarityThreshold float64, f Filter) ([]SearchResult, error)
	SearchByTag(ctx context.Context, tags []string, matchAll bool, timeStart int64) ([]*memory.Memory, error)

	UpdateMetadata(ctx context.Context, hash string, metadata map[string]interface{}) error
	UpdateContent(ctx context.Context, hash string, content string) error
	UpdateMemoriesBatch(ctx context.Context, memories []*memory.Memory) error

	Delete(ctx context.Context, hash string) error
	DeleteByTags(ctx context.Context, tags []string) (int, error)
	DeleteByTimeframe(ctx context.Context, start, end int64) (int, error)
	DeleteBeforeDate(ctx context.Context, before int64) (int, error)

	Health(ctx context.Context) (Stats, error)

	// PauseSync/ResumeSync are no-ops on non-hybrid backends.
	PauseSync(ctx context.Context) error
	ResumeSync(ctx context.Context) error
	GetSyncStatus(ctx context.Context) (SyncStatus, error)
}
