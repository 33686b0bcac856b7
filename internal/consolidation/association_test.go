package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
)

func makeMemberWithEmbedding(t *testing.T, content string, embedding []float32) *memory.Memory {
	t.Helper()
	m, err := memory.New(content, nil, "note", nil)
	require.NoError(t, err)
	m.Embedding = embedding
	return m
}

func TestRunAssociationSkipsWithoutClusters(t *testing.T) {
	store := newFakeStore()
	pipeline := New(store, nil, nil, testConfig(), logging.Noop())

	result, err := pipeline.runAssociation(context.Background(), "run-1", clusterOutput{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestRunAssociationRetainsOnlyMidRangeSimilarity(t *testing.T) {
	store := newFakeStore()
	a := makeMemberWithEmbedding(t, "content a", []float32{1, 0, 0})
	b := makeMemberWithEmbedding(t, "content b", []float32{0.6, 0.8, 0}) // cos ~0.6, in band
	c := makeMemberWithEmbedding(t, "content c", []float32{0.99, 0.14, 0}) // cos ~0.99, duplicate-like
	for _, m := range []*memory.Memory{a, b, c} {
		store.put(m)
	}

	clusters := clusterOutput{
		byMemories: map[string]*memory.Memory{a.ContentHash: a, b.ContentHash: b, c.ContentHash: c},
		Clusters:   []cluster{{Hashes: []string{a.ContentHash, b.ContentHash, c.ContentHash}}},
	}

	pipeline := New(store, nil, nil, testConfig(), logging.Noop())
	result, err := pipeline.runAssociation(context.Background(), "run-1", clusters)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EdgesAdded)
	assert.True(t, pipeline.graph.Has(a.ContentHash, b.ContentHash))
	assert.False(t, pipeline.graph.Has(a.ContentHash, c.ContentHash))
}

func TestRunAssociationWritesConnectionMetadataViaBatch(t *testing.T) {
	store := newFakeStore()
	a := makeMemberWithEmbedding(t, "content a", []float32{1, 0, 0})
	b := makeMemberWithEmbedding(t, "content b", []float32{0.6, 0.8, 0})
	for _, m := range []*memory.Memory{a, b} {
		store.put(m)
	}
	clusters := clusterOutput{
		byMemories: map[string]*memory.Memory{a.ContentHash: a, b.ContentHash: b},
		Clusters:   []cluster{{Hashes: []string{a.ContentHash, b.ContentHash}}},
	}

	pipeline := New(store, nil, nil, testConfig(), logging.Noop())
	_, err := pipeline.runAssociation(context.Background(), "run-1", clusters)
	require.NoError(t, err)

	got, err := store.GetByHash(context.Background(), a.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Metadata[memory.MetaConnectionCount])
}
