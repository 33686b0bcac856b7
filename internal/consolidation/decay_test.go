package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
)

func TestDecayScoreFreshMemoryIsNearOne(t *testing.T) {
	store := newFakeStore()
	pipeline := New(store, nil, nil, testConfig(), logging.Noop())

	m, err := memory.New("fresh content", nil, "note", nil)
	require.NoError(t, err)
	m.Type = "standard"

	score := pipeline.decayScore(m, time.Now())
	assert.Greater(t, score, 0.9)
}

func TestDecayScoreOldMemoryDecaysTowardZero(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	pipeline := New(store, nil, nil, cfg, logging.Noop())

	m, err := memory.New("old content", nil, "note", nil)
	require.NoError(t, err)
	m.Type = "temporary"
	m.CreatedAt = float64(time.Now().AddDate(0, 0, -90).Unix())

	score := pipeline.decayScore(m, time.Now())
	assert.Less(t, score, 0.1)
}

func TestDecayScoreAccessBoostKeepsRecentlyUsedMemoryRelevant(t *testing.T) {
	store := newFakeStore()
	pipeline := New(store, nil, nil, testConfig(), logging.Noop())

	m, err := memory.New("accessed content", nil, "note", nil)
	require.NoError(t, err)
	m.Type = "temporary"
	m.CreatedAt = float64(time.Now().AddDate(0, 0, -60).Unix())
	for i := 0; i < 20; i++ {
		m.RecordAccess()
	}

	score := pipeline.decayScore(m, time.Now())
	unboosted, err2 := memory.New("unboosted content", nil, "note", nil)
	require.NoError(t, err2)
	unboosted.Type = "temporary"
	unboosted.CreatedAt = m.CreatedAt
	baseline := pipeline.decayScore(unboosted, time.Now())

	assert.Greater(t, score, baseline)
}

func TestRunDecayWritesRelevanceScoreViaBatch(t *testing.T) {
	store := newFakeStore()
	m, err := memory.New("batch target", nil, "note", nil)
	require.NoError(t, err)
	store.put(m)

	pipeline := New(store, nil, nil, testConfig(), logging.Noop())
	result, err := pipeline.runDecay(context.Background(), "run-1", Horizon{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.MemoriesScored)

	got, err := store.GetByHash(context.Background(), m.ContentHash)
	require.NoError(t, err)
	_, ok := got.Metadata[memory.MetaRelevanceScore]
	assert.True(t, ok)
}
