package syncqueue

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

// Applier applies one queued Operation to the secondary backend.
type Applier interface {
	Apply(ctx context.Context, op Operation) error
}

// FailureRecorder persists an op that failed permanently (a sync_failures
// table) so it is never silently dropped nor retried forever.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, op Operation) error
}

const defaultMaxAttempts = 5

// Worker drains a Queue into an Applier, supervised by an errgroup so the
// context canceling brings the single worker goroutine down cleanly. A panic
// in the applier is not recovered.
type Worker struct {
	queue       *Queue
	applier     Applier
	failures    FailureRecorder
	log         logging.Logger
	maxAttempts int
	pollEvery   time.Duration
}

func NewWorker(queue *Queue, applier Applier, failures FailureRecorder, log logging.Logger) *Worker {
	return &Worker{
		queue:       queue,
		applier:     applier,
		failures:    failures,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		pollEvery:   50 * time.Millisecond,
	}
}

// Run drains the queue until ctx is canceled, at which point it finishes the
// in-flight operation and returns, leaving anything still queued for the
// next Run call (drain-on-shutdown: nothing queued is lost, just deferred).
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(w.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				w.drainOnce(ctx)
			}
		}
	})
	return g.Wait()
}

// drainOnce dequeues and applies operations until the queue is empty or
// paused, processing each content_hash's ops in enqueue order since a
// single worker goroutine consumes the FIFO sequentially.
func (w *Worker) drainOnce(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		op, ok := w.queue.Get()
		if !ok {
			return
		}
		w.applyWithRetry(ctx, op)
	}
}

// backoffFor returns an exponential delay (200ms, 400ms, 800ms, ...) capped
// at 5s, applied before a retryable op is requeued.
func backoffFor(attempts int) time.Duration {
	d := 200 * time.Millisecond
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= 5*time.Second {
			return 5 * time.Second
		}
	}
	return d
}

func (w *Worker) applyWithRetry(ctx context.Context, op Operation) {
	err := w.applier.Apply(ctx, op)
	if err == nil {
		return
	}

	op.Attempts++
	op.LastError = err.Error()

	if merrors.IsPermanent(err) || op.Attempts >= w.maxAttempts {
		if recErr := w.failures.RecordFailure(ctx, op); recErr != nil {
			w.log.Error("failed to record permanent sync failure", "op_id", op.OpID, "error", recErr)
		}
		return
	}

	w.log.Warn("sync op failed, requeueing", "op_id", op.OpID, "attempt", op.Attempts, "error", err)
	time.Sleep(backoffFor(op.Attempts))
	w.queue.Requeue(op)
}
