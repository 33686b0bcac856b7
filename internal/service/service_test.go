package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/chunking"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/quality"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// fakeBackend is an in-memory storage.Backend double sufficient to exercise
// the facade without a real SQLite file.
type fakeBackend struct {
	byHash map[string]*memory.Memory
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{byHash: make(map[string]*memory.Memory)}
}

func (f *fakeBackend) Store(_ context.Context, m *memory.Memory) (bool, error) {
	if _, exists := f.byHash[m.ContentHash]; exists {
		return false, nil
	}
	f.byHash[m.ContentHash] = m
	return true, nil
}

func (f *fakeBackend) GetByHash(_ context.Context, hash string) (*memory.Memory, error) {
	m, ok := f.byHash[hash]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (f *fakeBackend) GetAll(_ context.Context, filter storage.Filter) ([]*memory.Memory, error) {
	var out []*memory.Memory
	for _, m := range f.byHash {
		if filter.MemoryType != "" && m.Type != filter.MemoryType {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeBackend) GetRecent(_ context.Context, n int) ([]*memory.Memory, error) {
	var out []*memory.Memory
	for _, m := range f.byHash {
		out = append(out, m)
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeBackend) GetMemoryTimestamps(_ context.Context) (map[string]float64, error) {
	out := make(map[string]float64, len(f.byHash))
	for h, m := range f.byHash {
		out[h] = m.CreatedAt
	}
	return out, nil
}

func (f *fakeBackend) GetLargest(_ context.Context, n int) ([]*memory.Memory, error) {
	return f.GetRecent(context.Background(), n)
}

func (f *fakeBackend) CountAll(_ context.Context, _ storage.Filter) (int64, error) {
	return int64(len(f.byHash)), nil
}

func (f *fakeBackend) GetAllTags(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, m := range f.byHash {
		for _, tag := range m.Tags {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	return out, nil
}

func (f *fakeBackend) Retrieve(_ context.Context, _ string, n int, _ float64, _ storage.Filter) ([]storage.SearchResult, error) {
	var out []storage.SearchResult
	for _, m := range f.byHash {
		out = append(out, storage.SearchResult{Memory: m, Similarity: 0.9, Distance: 0.1})
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeBackend) SearchByTag(_ context.Context, tags []string, matchAll bool, _ int64) ([]*memory.Memory, error) {
	var out []*memory.Memory
	for _, m := range f.byHash {
		if hasAnyOrAllTags(m, tags, matchAll) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) UpdateMetadata(_ context.Context, hash string, patch map[string]interface{}) error {
	m, ok := f.byHash[hash]
	if !ok {
		return nil
	}
	for k, v := range patch {
		if k == "tags" {
			if tags, ok := v.([]string); ok {
				m.Tags = memory.NormalizeTags(tags)
			}
			continue
		}
		m.Metadata[k] = v
	}
	return nil
}

func (f *fakeBackend) UpdateContent(_ context.Context, hash, content string) error {
	if m, ok := f.byHash[hash]; ok {
		m.Content = content
	}
	return nil
}

func (f *fakeBackend) UpdateMemoriesBatch(_ context.Context, memories []*memory.Memory) error {
	for _, m := range memories {
		f.byHash[m.ContentHash] = m
	}
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, hash string) error {
	delete(f.byHash, hash)
	return nil
}

func (f *fakeBackend) DeleteByTags(_ context.Context, tags []string) (int, error) {
	n := 0
	for h, m := range f.byHash {
		if hasAnyOrAllTags(m, tags, false) {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) DeleteByTimeframe(_ context.Context, start, end int64) (int, error) {
	n := 0
	for h, m := range f.byHash {
		if int64(m.CreatedAt) >= start && int64(m.CreatedAt) <= end {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) DeleteBeforeDate(_ context.Context, before int64) (int, error) {
	n := 0
	for h, m := range f.byHash {
		if int64(m.CreatedAt) < before {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) Health(_ context.Context) (storage.Stats, error) {
	return storage.Stats{TotalMemories: int64(len(f.byHash))}, nil
}

func (f *fakeBackend) PauseSync(_ context.Context) error  { return nil }
func (f *fakeBackend) ResumeSync(_ context.Context) error { return nil }
func (f *fakeBackend) GetSyncStatus(_ context.Context) (storage.SyncStatus, error) {
	return storage.SyncStatus{}, nil
}

func unlimitedPolicy() chunking.Policy {
	return chunking.Policy{MaxContentLength: 0, AutoSplit: false, OverlapChars: 50}
}

func TestNormalizeTagsSplitsCommaString(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeTags("a, b"))
}

func TestNormalizeTagsWrapsPlainString(t *testing.T) {
	assert.Equal(t, []string{"solo"}, NormalizeTags("solo"))
}

func TestNormalizeTagsNilBecomesEmpty(t *testing.T) {
	assert.Empty(t, NormalizeTags(nil))
}

func TestStoreMemoryReturnsSingleContentHash(t *testing.T) {
	backend := newFakeBackend()
	svc := New(backend, nil, unlimitedPolicy(), false, logging.Noop())

	result, err := svc.StoreMemory(context.Background(), "a short note about testing", []string{"go"}, "note", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ContentHash)
	assert.Zero(t, result.ChunksCreated)
}

func TestStoreMemorySplitsLongContentIntoChunks(t *testing.T) {
	backend := newFakeBackend()
	policy := chunking.Policy{MaxContentLength: 50, AutoSplit: true, OverlapChars: 10}
	svc := New(backend, nil, policy, false, logging.Noop())

	content := strings.Repeat("word ", 40)
	result, err := svc.StoreMemory(context.Background(), content, nil, "note", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Greater(t, result.ChunksCreated, 1)
	assert.Len(t, result.ChunkHashes, result.ChunksCreated)
}

func TestStoreMemoryAppliesHostnameTagWhenConfigured(t *testing.T) {
	backend := newFakeBackend()
	svc := New(backend, nil, unlimitedPolicy(), true, logging.Noop())

	result, err := svc.StoreMemory(context.Background(), "note with host tag", nil, "note", nil)
	require.NoError(t, err)
	m, err := backend.GetByHash(context.Background(), result.ContentHash)
	require.NoError(t, err)
	found := false
	for _, tag := range m.Tags {
		if strings.HasPrefix(tag, "source:") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStoreMemoryScoresQualityWhenScorerConfigured(t *testing.T) {
	backend := newFakeBackend()
	svc := New(backend, quality.NewHeuristic(), unlimitedPolicy(), false, logging.Noop())

	result, err := svc.StoreMemory(context.Background(), "a well structured note\n\n```go\ncode\n```", nil, "note", nil)
	require.NoError(t, err)
	m, err := backend.GetByHash(context.Background(), result.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, m.Quality)
}

func TestRetrieveMemoriesEmptyQueryDelegatesToRecent(t *testing.T) {
	backend := newFakeBackend()
	svc := New(backend, nil, unlimitedPolicy(), false, logging.Noop())

	_, err := svc.StoreMemory(context.Background(), "a memory to recall", nil, "note", nil)
	require.NoError(t, err)

	result, err := svc.RetrieveMemories(context.Background(), "", 10, 0, nil, "", 0, 0)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Results, 1)
}

func TestDeleteByTagsRemovesMatchingMemories(t *testing.T) {
	backend := newFakeBackend()
	svc := New(backend, nil, unlimitedPolicy(), false, logging.Noop())

	_, err := svc.StoreMemory(context.Background(), "tagged for deletion", []string{"ephemeral"}, "note", nil)
	require.NoError(t, err)

	result, err := svc.DeleteByTags(context.Background(), []string{"ephemeral"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
}
