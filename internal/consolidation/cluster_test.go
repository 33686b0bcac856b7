package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/config"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

func unitVector(dims int, hot int) []float32 {
	v := make([]float32, dims)
	v[hot%dims] = 1
	return v
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	a := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, cosineSimilarity(a, a), 1e-9)
}

func TestCosineSimilarityOrthogonalVectorsIsZero(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	assert.InDelta(t, 0.0, cosineSimilarity(a, b), 1e-9)
}

func TestRunClusterSkipsWhenBackendLacksEmbeddings(t *testing.T) {
	noEmbed := &fakeStoreNoEmbed{inner: newFakeStore()}
	pipeline := New(noEmbed, nil, nil, testConfig(), logging.Noop())

	_, result, err := pipeline.runCluster(context.Background(), "run-1", Horizon{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestRunClusterSkipsSmallCorpus(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		m, err := memory.New("some short text", nil, "note", nil)
		require.NoError(t, err)
		m.Embedding = unitVector(8, i)
		store.put(m)
	}
	pipeline := New(store, nil, nil, testConfig(), logging.Noop())

	_, result, err := pipeline.runCluster(context.Background(), "run-1", Horizon{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "corpus smaller than 50 memories", result.SkipNote)
}

func TestDBSCANGroupsDenseNeighborhoodAsOneCluster(t *testing.T) {
	cfg := config.ConsolidationConfig{ClusterEps: 0.01, ClusterMinSamples: 3}
	var items []*memory.Memory
	for i := 0; i < 6; i++ {
		m, err := memory.New("text body", nil, "note", nil)
		require.NoError(t, err)
		m.Embedding = []float32{1, 0, 0}
		items = append(items, m)
	}
	outlier, err := memory.New("outlier body unrelated", nil, "note", nil)
	require.NoError(t, err)
	outlier.Embedding = []float32{0, 0, 1}
	items = append(items, outlier)

	labels := dbscan(items, cfg.ClusterEps, cfg.ClusterMinSamples)
	require.Len(t, labels, 7)
	for i := 0; i < 6; i++ {
		assert.GreaterOrEqual(t, labels[i], 0)
		assert.Equal(t, labels[0], labels[i])
	}
	assert.Equal(t, -1, labels[6])
}

// fakeStoreNoEmbed implements storage.Backend by forwarding to fakeStore
// without embedding it, so it deliberately does NOT satisfy embeddingSource
// (forwarding a method by name would promote it to the interface too).
type fakeStoreNoEmbed struct {
	inner *fakeStore
}

func (f *fakeStoreNoEmbed) Store(ctx context.Context, m *memory.Memory) (bool, error) {
	return f.inner.Store(ctx, m)
}
func (f *fakeStoreNoEmbed) GetByHash(ctx context.Context, hash string) (*memory.Memory, error) {
	return f.inner.GetByHash(ctx, hash)
}
func (f *fakeStoreNoEmbed) GetAll(ctx context.Context, flt storage.Filter) ([]*memory.Memory, error) {
	return f.inner.GetAll(ctx, flt)
}
func (f *fakeStoreNoEmbed) GetRecent(ctx context.Context, n int) ([]*memory.Memory, error) {
	return f.inner.GetRecent(ctx, n)
}
func (f *fakeStoreNoEmbed) GetMemoryTimestamps(ctx context.Context) (map[string]float64, error) {
	return f.inner.GetMemoryTimestamps(ctx)
}
func (f *fakeStoreNoEmbed) GetLargest(ctx context.Context, n int) ([]*memory.Memory, error) {
	return f.inner.GetLargest(ctx, n)
}
func (f *fakeStoreNoEmbed) CountAll(ctx context.Context, flt storage.Filter) (int64, error) {
	return f.inner.CountAll(ctx, flt)
}
func (f *fakeStoreNoEmbed) GetAllTags(ctx context.Context) ([]string, error) {
	return f.inner.GetAllTags(ctx)
}
func (f *fakeStoreNoEmbed) Retrieve(ctx context.Context, query string, n int, threshold float64, flt storage.Filter) ([]storage.SearchResult, error) {
	return f.inner.Retrieve(ctx, query, n, threshold, flt)
}
func (f *fakeStoreNoEmbed) SearchByTag(ctx context.Context, tags []string, matchAll bool, timeStart int64) ([]*memory.Memory, error) {
	return f.inner.SearchByTag(ctx, tags, matchAll, timeStart)
}
func (f *fakeStoreNoEmbed) UpdateMetadata(ctx context.Context, hash string, metadata map[string]interface{}) error {
	return f.inner.UpdateMetadata(ctx, hash, metadata)
}
func (f *fakeStoreNoEmbed) UpdateContent(ctx context.Context, hash string, content string) error {
	return f.inner.UpdateContent(ctx, hash, content)
}
func (f *fakeStoreNoEmbed) UpdateMemoriesBatch(ctx context.Context, memories []*memory.Memory) error {
	return f.inner.UpdateMemoriesBatch(ctx, memories)
}
func (f *fakeStoreNoEmbed) Delete(ctx context.Context, hash string) error {
	return f.inner.Delete(ctx, hash)
}
func (f *fakeStoreNoEmbed) DeleteByTags(ctx context.Context, tags []string) (int, error) {
	return f.inner.DeleteByTags(ctx, tags)
}
func (f *fakeStoreNoEmbed) DeleteByTimeframe(ctx context.Context, start, end int64) (int, error) {
	return f.inner.DeleteByTimeframe(ctx, start, end)
}
func (f *fakeStoreNoEmbed) DeleteBeforeDate(ctx context.Context, before int64) (int, error) {
	return f.inner.DeleteBeforeDate(ctx, before)
}
func (f *fakeStoreNoEmbed) Health(ctx context.Context) (storage.Stats, error) {
	return f.inner.Health(ctx)
}
func (f *fakeStoreNoEmbed) PauseSync(ctx context.Context) error  { return f.inner.PauseSync(ctx) }
func (f *fakeStoreNoEmbed) ResumeSync(ctx context.Context) error { return f.inner.ResumeSync(ctx) }
func (f *fakeStoreNoEmbed) GetSyncStatus(ctx context.Context) (storage.SyncStatus, error) {
	return f.inner.GetSyncStatus(ctx)
}
