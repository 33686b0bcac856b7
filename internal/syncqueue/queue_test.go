package syncqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryPutAndGetPreservesFIFOOrder(t *testing.T) {
	q := NewQueue(10)
	a := NewOperation(KindStore, "hash-a", nil)
	b := NewOperation(KindStore, "hash-b", nil)
	require.NoError(t, q.TryPut(a))
	require.NoError(t, q.TryPut(b))

	got, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, a.OpID, got.OpID)

	got, ok = q.Get()
	require.True(t, ok)
	assert.Equal(t, b.OpID, got.OpID)
}

func TestTryPutRejectsWhenPaused(t *testing.T) {
	q := NewQueue(10)
	q.Pause()
	err := q.TryPut(NewOperation(KindStore, "hash-a", nil))
	assert.Error(t, err)
}

func TestTryPutRejectsWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPut(NewOperation(KindStore, "hash-a", nil)))
	err := q.TryPut(NewOperation(KindStore, "hash-b", nil))
	assert.Error(t, err)
}

func TestDeleteDominatesPendingUpdate(t *testing.T) {
	q := NewQueue(10)
	require.NoError(t, q.TryPut(NewOperation(KindUpdateMetadata, "hash-a", "v1")))
	require.NoError(t, q.TryPut(NewOperation(KindDelete, "hash-a", nil)))

	assert.Equal(t, 1, q.Len())
	got, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, KindDelete, got.Kind)
}

func TestLaterUpdateAfterDeleteIsDropped(t *testing.T) {
	q := NewQueue(10)
	require.NoError(t, q.TryPut(NewOperation(KindDelete, "hash-a", nil)))
	require.NoError(t, q.TryPut(NewOperation(KindUpdateMetadata, "hash-a", "v2")))

	assert.Equal(t, 1, q.Len())
	got, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, KindDelete, got.Kind)
}

func TestSameKindUpdateIsLastWriterWins(t *testing.T) {
	q := NewQueue(10)
	require.NoError(t, q.TryPut(NewOperation(KindUpdateMetadata, "hash-a", "v1")))
	require.NoError(t, q.TryPut(NewOperation(KindUpdateMetadata, "hash-a", "v2")))

	assert.Equal(t, 1, q.Len())
	got, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, "v2", got.Payload)
}

func TestGetOnEmptyQueueReturnsFalse(t *testing.T) {
	q := NewQueue(10)
	_, ok := q.Get()
	assert.False(t, ok)
}
