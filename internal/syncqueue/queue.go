// Package syncqueue implements the bounded async queue the hybrid store
// drains into the cloud secondary.
package syncqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the operation a SyncOperation replays against the
// secondary backend.
type Kind string

const (
	KindStore          Kind = "store"
	KindDelete         Kind = "delete"
	KindUpdateMetadata Kind = "update_metadata"
	KindUpdateContent  Kind = "update_content"
	KindRenameTag      Kind = "rename_tag"
	KindMergeTags      Kind = "merge_tags"
	KindLinkRelated    Kind = "link_related"
)

// Operation is one queued write destined for the secondary backend, keyed
// by ContentHash so the worker can coalesce superseding ops.
type Operation struct {
	OpID        string
	Kind        Kind
	ContentHash string
	Payload     interface{}
	EnqueuedAt  time.Time
	Attempts    int
	LastError   string
}

// Queue is a bounded, in-process FIFO of Operations. Put blocks up to a
// configurable timeout when full; callers must apply the operation inline
// on timeout rather than dropping it, so no op is ever silently lost.
type Queue struct {
	mu       sync.Mutex
	items    []Operation
	notEmpty chan struct{}
	maxSize  int
	paused   bool
}

// NewQueue builds a Queue bounded at maxSize (default 1000).
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Queue{maxSize: maxSize, notEmpty: make(chan struct{}, 1)}
}

// NewOperation stamps a globally unique op_id via uuid, matching the
// teacher's pervasive use of google/uuid for entity identifiers.
func NewOperation(kind Kind, contentHash string, payload interface{}) Operation {
	return Operation{
		OpID:        uuid.NewString(),
		Kind:        kind,
		ContentHash: contentHash,
		Payload:     payload,
		EnqueuedAt:  time.Now(),
	}
}

// Pause stops new enqueues, so while the hybrid store pauses for
// consolidation no new ops land in the queue.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
}

func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// ErrQueueFull is returned by TryPut when the queue is at capacity and the
// caller should apply the operation inline instead.
type ErrQueueFull struct{}

func (ErrQueueFull) Error() string { return "sync queue is full" }

// TryPut enqueues op immediately, failing with ErrQueueFull if at capacity
// or Pause()d. Callers needing the bounded wait use Put instead. Before
// appending, it coalesces against any still-pending op for the same
// content hash: a delete dominates any pending op (and is itself never
// superseded), and a same-kind op is replaced last-writer-wins.
func (q *Queue) TryPut(op Operation) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return ErrQueueFull{}
	}

	for i, existing := range q.items {
		if existing.ContentHash != op.ContentHash {
			continue
		}
		if existing.Kind == KindDelete {
			return nil // delete already pending, dominates any later op
		}
		if op.Kind == KindDelete {
			q.items[i] = op // delete supersedes whatever was pending
			return nil
		}
		if existing.Kind == op.Kind {
			q.items[i] = op // last-writer-wins for same-kind updates
			return nil
		}
	}

	if len(q.items) >= q.maxSize {
		return ErrQueueFull{}
	}
	q.items = append(q.items, op)
	q.signal()
	return nil
}

// Put enqueues op, waiting up to timeout for room if the queue is full.
// Returns ErrQueueFull if the wait expires; the caller must then apply the
// operation synchronously against the secondary instead.
func (q *Queue) Put(ctx context.Context, op Operation, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		if err := q.TryPut(op); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrQueueFull{}
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Get dequeues the oldest operation, or (zero, false) if empty.
func (q *Queue) Get() (Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused || len(q.items) == 0 {
		return Operation{}, false
	}
	op := q.items[0]
	q.items = q.items[1:]
	return op, true
}

// Requeue puts op back at the tail, used after a retryable failure.
func (q *Queue) Requeue(op Operation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, op)
	q.signal()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}
