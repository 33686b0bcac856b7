// Package hybridstore composes a local primary with a cloud secondary: every
// write lands on the primary synchronously and is mirrored to the secondary
// through a bounded async queue, while every read is served from the primary
// alone.
package hybridstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/syncqueue"
)

// Config configures the hybrid composition's queueing and drift-detection
// parameters; see config.HybridConfig for the on-disk/env shape this is
// built from.
type Config struct {
	MaxQueueSize    int
	QueuePutTimeout time.Duration
	MaxEmptyBatches int
	MinCheckCount   int
	RedisAddr       string
	RedisCacheTTL   time.Duration
}

// FailureRecorder persists sync ops that exhausted their retries.
type FailureRecorder interface {
	syncqueue.FailureRecorder
	CountSyncFailures(ctx context.Context) (int, error)
}

// Store implements storage.Backend by delegating reads to primary and
// fanning writes out to secondary through a bounded queue.
type Store struct {
	primary   storage.Backend
	secondary storage.Backend
	queue     *syncqueue.Queue
	worker    *syncqueue.Worker
	failures  FailureRecorder
	cache     *redis.Client
	cacheTTL  time.Duration
	cfg       Config
	log       logging.Logger

	startedAt time.Time
}

// New builds a Store. Call Run to start the background sync worker.
func New(primary, secondary storage.Backend, failures FailureRecorder, cfg Config, log logging.Logger) *Store {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1000
	}
	if cfg.QueuePutTimeout <= 0 {
		cfg.QueuePutTimeout = 5 * time.Second
	}

	queue := syncqueue.NewQueue(cfg.MaxQueueSize)
	worker := syncqueue.NewWorker(queue, &secondaryApplier{secondary: secondary}, failures, log)

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	return &Store{
		primary:   primary,
		secondary: secondary,
		queue:     queue,
		worker:    worker,
		failures:  failures,
		cache:     cache,
		cacheTTL:  cfg.RedisCacheTTL,
		cfg:       cfg,
		log:       log,
		startedAt: time.Now(),
	}
}

// Run starts the background worker that drains the sync queue into the
// secondary; it blocks until ctx is canceled.
func (s *Store) Run(ctx context.Context) error {
	return s.worker.Run(ctx)
}

// enqueueOrInline enqueues op for the secondary, bounded-waiting up to
// QueuePutTimeout; on timeout the op is applied inline instead of dropped.
func (s *Store) enqueueOrInline(ctx context.Context, op syncqueue.Operation) {
	if s.queue.Paused() {
		return
	}
	err := s.queue.Put(ctx, op, s.cfg.QueuePutTimeout)
	if err == nil {
		return
	}
	s.log.Warn("sync queue full, applying inline", "op_id", op.OpID, "content_hash", op.ContentHash)
	if applyErr := applyInline(ctx, s.secondary, op); applyErr != nil {
		s.log.Error("inline secondary apply failed", "op_id", op.OpID, "error", applyErr)
	}
}

func (s *Store) Store(ctx context.Context, m *memory.Memory) (bool, error) {
	created, err := s.primary.Store(ctx, m)
	if err != nil || !created {
		return created, err
	}
	s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindStore, m.ContentHash, m))
	s.invalidateCache(ctx, m.ContentHash)
	return true, nil
}

func (s *Store) GetByHash(ctx context.Context, hash string) (*memory.Memory, error) {
	if m, ok := s.getCached(ctx, hash); ok {
		return m, nil
	}
	m, err := s.primary.GetByHash(ctx, hash)
	if err == nil {
		s.setCached(ctx, hash, m)
	}
	return m, err
}

func (s *Store) GetAll(ctx context.Context, f storage.Filter) ([]*memory.Memory, error) {
	return s.primary.GetAll(ctx, f)
}

func (s *Store) GetRecent(ctx context.Context, n int) ([]*memory.Memory, error) {
	return s.primary.GetRecent(ctx, n)
}

func (s *Store) GetMemoryTimestamps(ctx context.Context) (map[string]float64, error) {
	return s.primary.GetMemoryTimestamps(ctx)
}

func (s *Store) GetLargest(ctx context.Context, n int) ([]*memory.Memory, error) {
	return s.primary.GetLargest(ctx, n)
}

func (s *Store) CountAll(ctx context.Context, f storage.Filter) (int64, error) {
	return s.primary.CountAll(ctx, f)
}

func (s *Store) GetAllTags(ctx context.Context) ([]string, error) {
	return s.primary.GetAllTags(ctx)
}

func (s *Store) Retrieve(ctx context.Context, query string, n int, threshold float64, f storage.Filter) ([]storage.SearchResult, error) {
	return s.primary.Retrieve(ctx, query, n, threshold, f)
}

func (s *Store) SearchByTag(ctx context.Context, tags []string, matchAll bool, timeStart int64) ([]*memory.Memory, error) {
	return s.primary.SearchByTag(ctx, tags, matchAll, timeStart)
}

func (s *Store) UpdateMetadata(ctx context.Context, hash string, metadata map[string]interface{}) error {
	if err := s.primary.UpdateMetadata(ctx, hash, metadata); err != nil {
		return err
	}
	s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindUpdateMetadata, hash, metadata))
	s.invalidateCache(ctx, hash)
	return nil
}

func (s *Store) UpdateContent(ctx context.Context, hash string, content string) error {
	if err := s.primary.UpdateContent(ctx, hash, content); err != nil {
		return err
	}
	s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindUpdateContent, hash, content))
	s.invalidateCache(ctx, hash)
	return nil
}

// UpdateMemoriesBatch applies the batch to the primary in a single
// transaction, then enqueues one secondary sync op per memory.
func (s *Store) UpdateMemoriesBatch(ctx context.Context, memories []*memory.Memory) error {
	if err := s.primary.UpdateMemoriesBatch(ctx, memories); err != nil {
		return err
	}
	for _, m := range memories {
		s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindStore, m.ContentHash, m))
		s.invalidateCache(ctx, m.ContentHash)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, hash string) error {
	if err := s.primary.Delete(ctx, hash); err != nil {
		return err
	}
	s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindDelete, hash, nil))
	s.invalidateCache(ctx, hash)
	return nil
}

func (s *Store) DeleteByTags(ctx context.Context, tags []string) (int, error) {
	matches, err := s.primary.SearchByTag(ctx, tags, false, 0)
	if err != nil {
		return 0, err
	}
	n, err := s.primary.DeleteByTags(ctx, tags)
	if err != nil {
		return n, err
	}
	for _, m := range matches {
		s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindDelete, m.ContentHash, nil))
		s.invalidateCache(ctx, m.ContentHash)
	}
	return n, nil
}

func (s *Store) DeleteByTimeframe(ctx context.Context, start, end int64) (int, error) {
	hashes, err := s.hashesInRange(ctx, start, end)
	if err != nil {
		return 0, err
	}
	n, err := s.primary.DeleteByTimeframe(ctx, start, end)
	if err != nil {
		return n, err
	}
	s.enqueueDeletes(ctx, hashes)
	return n, nil
}

func (s *Store) DeleteBeforeDate(ctx context.Context, before int64) (int, error) {
	hashes, err := s.hashesInRange(ctx, 0, before-1)
	if err != nil {
		return 0, err
	}
	n, err := s.primary.DeleteBeforeDate(ctx, before)
	if err != nil {
		return n, err
	}
	s.enqueueDeletes(ctx, hashes)
	return n, nil
}

func (s *Store) hashesInRange(ctx context.Context, start, end int64) ([]string, error) {
	timestamps, err := s.primary.GetMemoryTimestamps(ctx)
	if err != nil {
		return nil, err
	}
	var hashes []string
	for hash, ts := range timestamps {
		if start > 0 && int64(ts) < start {
			continue
		}
		if end > 0 && int64(ts) > end {
			continue
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

func (s *Store) enqueueDeletes(ctx context.Context, hashes []string) {
	for _, h := range hashes {
		s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindDelete, h, nil))
		s.invalidateCache(ctx, h)
	}
}

func (s *Store) Health(ctx context.Context) (storage.Stats, error) {
	return s.primary.Health(ctx)
}

func (s *Store) PauseSync(ctx context.Context) error {
	s.queue.Pause()
	return nil
}

func (s *Store) ResumeSync(ctx context.Context) error {
	s.queue.Resume()
	return nil
}

func (s *Store) GetSyncStatus(ctx context.Context) (storage.SyncStatus, error) {
	failed := 0
	if s.failures != nil {
		if n, err := s.failures.CountSyncFailures(ctx); err == nil {
			failed = n
		}
	}
	return storage.SyncStatus{
		IsRunning:       !s.queue.Paused(),
		ActivelySyncing: s.queue.Len() > 0,
		Pending:         s.queue.Len(),
		LastSyncAt:      float64(time.Now().Unix()),
		Failed:          failed,
	}, nil
}
