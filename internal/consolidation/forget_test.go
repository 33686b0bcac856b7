package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
)

func TestRunForgettingArchivesStaleLowRelevanceMemory(t *testing.T) {
	store := newFakeStore()
	m, err := memory.New("an old forgotten note", nil, "note", nil)
	require.NoError(t, err)
	m.Metadata[memory.MetaRelevanceScore] = 0.01
	m.Metadata[memory.MetaLastAccessed] = float64(time.Now().AddDate(0, 0, -120).Unix())
	store.put(m)

	pipeline := New(store, nil, nil, testConfig(), logging.Noop())
	result, err := pipeline.runForgetting(context.Background(), "run-1", Horizon{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)

	got, err := store.GetByHash(context.Background(), m.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, memory.TypeArchived, got.Type)
	assert.True(t, got.HasTag("archived:run-1"))
}

func TestRunForgettingExemptsPinnedMemory(t *testing.T) {
	store := newFakeStore()
	m, err := memory.New("pinned important note", []string{memory.TagPinned}, "note", nil)
	require.NoError(t, err)
	m.Metadata[memory.MetaRelevanceScore] = 0.01
	m.Metadata[memory.MetaLastAccessed] = float64(time.Now().AddDate(0, 0, -120).Unix())
	store.put(m)

	pipeline := New(store, nil, nil, testConfig(), logging.Noop())
	result, err := pipeline.runForgetting(context.Background(), "run-1", Horizon{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Archived)
}

func TestRunForgettingSkipsFreshlyAccessedMemory(t *testing.T) {
	store := newFakeStore()
	m, err := memory.New("recently touched note", nil, "note", nil)
	require.NoError(t, err)
	m.Metadata[memory.MetaRelevanceScore] = 0.01
	m.Metadata[memory.MetaLastAccessed] = float64(time.Now().Unix())
	store.put(m)

	pipeline := New(store, nil, nil, testConfig(), logging.Noop())
	result, err := pipeline.runForgetting(context.Background(), "run-1", Horizon{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Archived)
}
