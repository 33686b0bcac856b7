package syncqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

type fakeApplier struct {
	mu      sync.Mutex
	applied []Operation
	failFor map[string]int // content_hash -> remaining failures, retryable
	permFor map[string]bool
}

func (f *fakeApplier) Apply(ctx context.Context, op Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permFor[op.ContentHash] {
		return merrors.Limit("permanent failure for %s", op.ContentHash)
	}
	if n := f.failFor[op.ContentHash]; n > 0 {
		f.failFor[op.ContentHash] = n - 1
		return merrors.Network(nil, "transient failure for %s", op.ContentHash)
	}
	f.applied = append(f.applied, op)
	return nil
}

type fakeFailureRecorder struct {
	mu       sync.Mutex
	recorded []Operation
}

func (f *fakeFailureRecorder) RecordFailure(ctx context.Context, op Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, op)
	return nil
}

func TestWorkerAppliesQueuedOperations(t *testing.T) {
	q := NewQueue(10)
	applier := &fakeApplier{failFor: map[string]int{}, permFor: map[string]bool{}}
	failures := &fakeFailureRecorder{}
	w := NewWorker(q, applier, failures, logging.New(logging.ERROR, false))
	w.pollEvery = time.Millisecond

	require.NoError(t, q.TryPut(NewOperation(KindStore, "hash-a", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	applier.mu.Lock()
	defer applier.mu.Unlock()
	assert.Len(t, applier.applied, 1)
}

func TestWorkerRetriesTransientFailureThenSucceeds(t *testing.T) {
	q := NewQueue(10)
	applier := &fakeApplier{failFor: map[string]int{"hash-a": 2}, permFor: map[string]bool{}}
	failures := &fakeFailureRecorder{}
	w := NewWorker(q, applier, failures, logging.New(logging.ERROR, false))
	w.pollEvery = time.Millisecond

	require.NoError(t, q.TryPut(NewOperation(KindStore, "hash-a", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = w.Run(ctx)

	applier.mu.Lock()
	defer applier.mu.Unlock()
	assert.Len(t, applier.applied, 1)
	failures.mu.Lock()
	defer failures.mu.Unlock()
	assert.Empty(t, failures.recorded)
}

func TestWorkerRecordsPermanentFailureWithoutRetrying(t *testing.T) {
	q := NewQueue(10)
	applier := &fakeApplier{failFor: map[string]int{}, permFor: map[string]bool{"hash-a": true}}
	failures := &fakeFailureRecorder{}
	w := NewWorker(q, applier, failures, logging.New(logging.ERROR, false))
	w.pollEvery = time.Millisecond

	require.NoError(t, q.TryPut(NewOperation(KindDelete, "hash-a", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	failures.mu.Lock()
	defer failures.mu.Unlock()
	require.Len(t, failures.recorded, 1)
	assert.Equal(t, "hash-a", failures.recorded[0].ContentHash)
}
