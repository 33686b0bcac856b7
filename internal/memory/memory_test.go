package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComputesContentHash(t *testing.T) {
	m, err := New("hello world", nil, "", nil)
	require.NoError(t, err)
	assert.Len(t, m.ContentHash, 64)
	assert.Equal(t, "note", m.Type)
}

func TestNewRejectsEmptyContent(t *testing.T) {
	_, err := New("   ", nil, "", nil)
	require.Error(t, err)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New("x", nil, "not_a_real_type", nil)
	require.Error(t, err)
}

func TestNormalizeTagsDedupesTrimsAndPreservesOrder(t *testing.T) {
	got := NormalizeTags([]string{" go ", "go", "", "  ", "rust"})
	assert.Equal(t, []string{"go", "rust"}, got)
}

func TestIdenticalContentProducesIdenticalHash(t *testing.T) {
	a, err := New("same text", []string{"a"}, "note", nil)
	require.NoError(t, err)
	b, err := New("same text", []string{"b"}, "reference", nil)
	require.NoError(t, err)
	assert.Equal(t, a.ContentHash, b.ContentHash)
}

func TestValidateRejectsBadEmbeddingDim(t *testing.T) {
	m, err := New("x", nil, "note", nil)
	require.NoError(t, err)
	m.Embedding = make([]float32, 10)
	require.Error(t, m.Validate())
}

func TestTouchRefreshesISOTimestamp(t *testing.T) {
	m, err := New("x", nil, "note", nil)
	require.NoError(t, err)
	before := m.UpdatedAt
	m.Touch()
	assert.GreaterOrEqual(t, m.UpdatedAt, before)
	assert.NotEmpty(t, m.Metadata[MetaUpdatedAtISO])
}

func TestChunkTagFormat(t *testing.T) {
	assert.Equal(t, "chunk:2/5", ChunkTag(2, 5))
}
