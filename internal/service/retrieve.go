package service

import (
	"context"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// RetrieveResult is RetrieveMemories' and Recall's return shape.
type RetrieveResult struct {
	Success bool
	Error   string
	Results []storage.SearchResult
}

// RetrieveMemories runs semantic search when query is non-empty, otherwise
// delegates to a recency/time-window listing, then post-filters by tags and
// memory_type for backends that do not apply those filters themselves.
func (f *Facade) RetrieveMemories(ctx context.Context, query string, n int, similarityThreshold float64, tags []string, memType string, timeStart, timeEnd int64) (RetrieveResult, error) {
	filter := storage.Filter{
		MemoryType: memType,
		Tags:       memory.NormalizeTags(tags),
		TimeStart:  timeStart,
		TimeEnd:    timeEnd,
		Limit:      n,
	}

	if query == "" {
		recent, err := f.recentWithinWindow(ctx, n, filter)
		if err != nil {
			return RetrieveResult{Success: false, Error: err.Error()}, nil
		}
		return RetrieveResult{Success: true, Results: recent}, nil
	}

	results, err := f.backend.Retrieve(ctx, query, n, similarityThreshold, filter)
	if err != nil {
		return RetrieveResult{Success: false, Error: err.Error()}, nil
	}
	return RetrieveResult{Success: true, Results: postFilter(results, filter)}, nil
}

// Recall is the empty-query-safe alias 4.4 calls out by name: query may be
// empty, in which case it behaves exactly like RetrieveMemories with an
// empty query.
func (f *Facade) Recall(ctx context.Context, query string, n int, timeStart, timeEnd int64) (RetrieveResult, error) {
	return f.RetrieveMemories(ctx, query, n, 0, nil, "", timeStart, timeEnd)
}

func (f *Facade) recentWithinWindow(ctx context.Context, n int, filter storage.Filter) ([]storage.SearchResult, error) {
	if filter.TimeStart == 0 && filter.TimeEnd == 0 && len(filter.Tags) == 0 && filter.MemoryType == "" {
		mems, err := f.backend.GetRecent(ctx, n)
		if err != nil {
			return nil, err
		}
		return toSearchResults(mems), nil
	}
	mems, err := f.backend.GetAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toSearchResults(mems), nil
}

func toSearchResults(mems []*memory.Memory) []storage.SearchResult {
	out := make([]storage.SearchResult, len(mems))
	for i, m := range mems {
		out[i] = storage.SearchResult{Memory: m, Similarity: 1, Distance: 0}
	}
	return out
}

// postFilter re-applies tag/type filters over results a backend already
// returned, covering backends (e.g. cloud) whose remote query surface
// doesn't support every filter combination natively.
func postFilter(results []storage.SearchResult, filter storage.Filter) []storage.SearchResult {
	if filter.MemoryType == "" && len(filter.Tags) == 0 {
		return results
	}
	out := make([]storage.SearchResult, 0, len(results))
	for _, r := range results {
		if filter.MemoryType != "" && r.Memory.Type != filter.MemoryType {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyOrAllTags(r.Memory, filter.Tags, filter.MatchAll) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasAnyOrAllTags(m *memory.Memory, tags []string, matchAll bool) bool {
	if matchAll {
		for _, t := range tags {
			if !m.HasTag(t) {
				return false
			}
		}
		return true
	}
	for _, t := range tags {
		if m.HasTag(t) {
			return true
		}
	}
	return false
}

// SearchByTag is a straightforward delegation to the backend's tag search.
func (f *Facade) SearchByTag(ctx context.Context, tags []string, matchAll bool, timeStart int64) (RetrieveResult, error) {
	mems, err := f.backend.SearchByTag(ctx, memory.NormalizeTags(tags), matchAll, timeStart)
	if err != nil {
		return RetrieveResult{Success: false, Error: err.Error()}, nil
	}
	return RetrieveResult{Success: true, Results: toSearchResults(mems)}, nil
}

// GetByHash is a straightforward delegation.
func (f *Facade) GetByHash(ctx context.Context, hash string) (*memory.Memory, error) {
	return f.backend.GetByHash(ctx, hash)
}

// GetAllTags returns every distinct tag across stored memories.
func (f *Facade) GetAllTags(ctx context.Context) ([]string, error) {
	return f.backend.GetAllTags(ctx)
}
