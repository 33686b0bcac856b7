package cloudstore

import (
	"context"
	"sort"
	"time"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/embedding"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// Config configures a Store's limits and endpoints.
type Config struct {
	Host, APIKey, Collection     string
	Port                         int
	UseTLS                       bool
	MetadataBaseURL, BlobBaseURL string
	BearerToken                  string
	RequestTimeout               time.Duration
	MaxAttempts                  int
	MaxContentLength             int
	BlobThresholdBytes           int
	EmbeddingDim                 int
	EmbeddingModel               string
	VectorLimit                  int64
}

// Store implements storage.Backend against three remote legs: a qdrant
// vector index, an HTTP relational metadata/tag leg, and an optional blob
// leg, fronted by an HTTP client that wraps retry/backoff.
type Store struct {
	vectors  *VectorIndex
	metadata *metadataClient
	blobs    *blobClient
	embedder embedding.Provider
	cfg      Config
	log      logging.Logger
}

// New builds a Store. Call EnsureCollection once during startup.
func New(cfg Config, embedder embedding.Provider, log logging.Logger) (*Store, error) {
	vectors, err := NewVectorIndex(cfg.Host, cfg.Port, cfg.APIKey, cfg.UseTLS, cfg.Collection, cfg.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	meta := newHTTPClient(cfg.MetadataBaseURL, cfg.BearerToken, cfg.RequestTimeout, cfg.MaxAttempts)
	blob := newHTTPClient(cfg.BlobBaseURL, cfg.BearerToken, cfg.RequestTimeout, cfg.MaxAttempts)
	return &Store{
		vectors:  vectors,
		metadata: newMetadataClient(meta),
		blobs:    newBlobClient(blob),
		embedder: embedder,
		cfg:      cfg,
		log:      log,
	}, nil
}

// EnsureCollection creates the vector collection if needed.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.vectors.EnsureCollection(ctx)
}

func (s *Store) Store(ctx context.Context, m *memory.Memory) (bool, error) {
	if s.cfg.MaxContentLength > 0 && len(m.Content) > s.cfg.MaxContentLength {
		return false, merrors.Limit("content length %d exceeds cloud max %d chars", len(m.Content), s.cfg.MaxContentLength)
	}

	if existing, err := s.metadata.Get(ctx, m.ContentHash); err == nil && existing != nil {
		s.log.Info("duplicate store, no-op", "content_hash", m.ContentHash)
		return false, nil
	}

	vec := m.Embedding
	if len(vec) == 0 {
		embedded, err := s.embedder.Embed(ctx, m.Content)
		if err != nil {
			return false, merrors.Embedding(err, "embedding memory %s", m.ContentHash)
		}
		vec = embedded
		m.Embedding = embedded
	}

	row := metadataRow{
		ContentHash: m.ContentHash,
		MemoryType:  m.Type,
		Tags:        m.Tags,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Quality:     m.Quality,
	}

	if s.cfg.BlobThresholdBytes > 0 && len(m.Content) > s.cfg.BlobThresholdBytes {
		blobID, err := s.blobs.Put(ctx, m.Content)
		if err != nil {
			return false, err
		}
		row.BlobID = blobID
	} else {
		row.Content = m.Content
	}

	if err := s.metadata.Put(ctx, row); err != nil {
		return false, err
	}
	if err := s.vectors.Upsert(ctx, m.ContentHash, vec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetByHash(ctx context.Context, hash string) (*memory.Memory, error) {
	row, err := s.metadata.Get(ctx, hash)
	if err != nil {
		return nil, merrors.NotFound("memory %s not found in cloud store", hash)
	}
	return s.rowToMemory(ctx, row)
}

func (s *Store) rowToMemory(ctx context.Context, row *metadataRow) (*memory.Memory, error) {
	content := row.Content
	if row.BlobID != "" {
		fetched, err := s.blobs.Get(ctx, row.BlobID)
		if err != nil {
			return nil, err
		}
		content = fetched
	}
	return &memory.Memory{
		ContentHash: row.ContentHash,
		Content:     content,
		Tags:        row.Tags,
		Type:        row.MemoryType,
		Metadata:    row.Metadata,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Quality:     row.Quality,
	}, nil
}

// GetAllBulk pages through every metadata row without per-row tag lookups,
// used by drift detection and consolidation's bulk reads.
func (s *Store) GetAllBulk(ctx context.Context, maxEmptyBatches, minCheckCount int) ([]*memory.Memory, error) {
	var out []*memory.Memory
	cursor := ""
	emptyBatches := 0
	checked := 0

	for {
		page, err := s.metadata.ListPage(ctx, cursor, 200)
		if err != nil {
			return nil, err
		}
		if len(page.Rows) == 0 {
			emptyBatches++
		} else {
			emptyBatches = 0
		}
		checked += len(page.Rows)

		for i := range page.Rows {
			m, err := s.rowToMemory(ctx, &page.Rows[i])
			if err != nil {
				continue
			}
			out = append(out, m)
		}

		if page.NextCursor == "" {
			break
		}
		if emptyBatches >= maxEmptyBatches && checked >= minCheckCount {
			break
		}
		cursor = page.NextCursor
	}
	return out, nil
}

func (s *Store) GetAll(ctx context.Context, f storage.Filter) ([]*memory.Memory, error) {
	all, err := s.GetAllBulk(ctx, 20, 1000)
	if err != nil {
		return nil, err
	}
	filtered := filterMemories(all, f)
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt > filtered[j].CreatedAt })
	return paginate(filtered, f.Offset, f.Limit), nil
}

func (s *Store) GetRecent(ctx context.Context, n int) ([]*memory.Memory, error) {
	return s.GetAll(ctx, storage.Filter{Limit: n})
}

func (s *Store) GetMemoryTimestamps(ctx context.Context) (map[string]float64, error) {
	all, err := s.GetAllBulk(ctx, 20, 1000)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(all))
	for _, m := range all {
		out[m.ContentHash] = m.CreatedAt
	}
	return out, nil
}

func (s *Store) GetLargest(ctx context.Context, n int) ([]*memory.Memory, error) {
	all, err := s.GetAllBulk(ctx, 20, 1000)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return len(all[i].Content) > len(all[j].Content) })
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (s *Store) CountAll(ctx context.Context, f storage.Filter) (int64, error) {
	all, err := s.GetAll(ctx, storage.Filter{MemoryType: f.MemoryType, Tags: f.Tags, MatchAll: f.MatchAll})
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

func (s *Store) Retrieve(ctx context.Context, query string, n int, threshold float64, f storage.Filter) ([]storage.SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, merrors.Embedding(err, "embedding query")
	}
	hits, err := s.vectors.Search(ctx, vec, n, threshold)
	if err != nil {
		return nil, err
	}

	results := make([]storage.SearchResult, 0, len(hits))
	for _, hit := range hits {
		m, err := s.GetByHash(ctx, hit.Hash)
		if err != nil {
			continue
		}
		if f.MemoryType != "" {
			if m.Type != f.MemoryType {
				continue
			}
		} else if m.Type == memory.TypeArchived {
			continue
		}
		if f.TimeStart > 0 && int64(m.CreatedAt) < f.TimeStart {
			continue
		}
		if f.TimeEnd > 0 && int64(m.CreatedAt) > f.TimeEnd {
			continue
		}
		results = append(results, storage.SearchResult{Memory: m, Similarity: hit.Score, Distance: 1 - hit.Score})
	}
	return results, nil
}

func (s *Store) SearchByTag(ctx context.Context, tags []string, matchAll bool, timeStart int64) ([]*memory.Memory, error) {
	all, err := s.GetAllBulk(ctx, 20, 1000)
	if err != nil {
		return nil, err
	}
	var out []*memory.Memory
	for _, m := range all {
		if m.Type == memory.TypeArchived {
			continue
		}
		if timeStart > 0 && int64(m.CreatedAt) < timeStart {
			continue
		}
		if tagsMatch(m.Tags, tags, matchAll) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) UpdateMetadata(ctx context.Context, hash string, metadata map[string]interface{}) error {
	m, err := s.GetByHash(ctx, hash)
	if err != nil {
		return err
	}
	for k, v := range metadata {
		m.Metadata[k] = v
	}
	m.Touch()
	_, err = s.Store(ctx, m)
	return err
}

func (s *Store) UpdateContent(ctx context.Context, hash string, content string) error {
	m, err := s.GetByHash(ctx, hash)
	if err != nil {
		return err
	}
	m.Content = content
	m.Touch()
	_, err = s.Store(ctx, m)
	return err
}

// UpdateMemoriesBatch applies row updates one request per memory: the cloud
// leg has no multi-row transaction primitive, unlike the local store's
// single-transaction batch, which is a local-store-only optimization.
func (s *Store) UpdateMemoriesBatch(ctx context.Context, memories []*memory.Memory) error {
	for _, m := range memories {
		if _, err := s.Store(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, hash string) error {
	if _, err := s.metadata.Get(ctx, hash); err != nil {
		return merrors.NotFound("memory %s not found in cloud store", hash)
	}
	if err := s.metadata.Delete(ctx, hash); err != nil {
		return err
	}
	return s.vectors.Delete(ctx, []string{hash})
}

// GetAllTags returns every distinct tag across stored memories, bulk-derived
// since the relational leg has no distinct-tag query of its own.
func (s *Store) GetAllTags(ctx context.Context) ([]string, error) {
	all, err := s.GetAllBulk(ctx, 20, 1000)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range all {
		for _, tag := range m.Tags {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DeleteByTags(ctx context.Context, tags []string) (int, error) {
	matches, err := s.SearchByTag(ctx, tags, false, 0)
	if err != nil {
		return 0, err
	}
	hashes := make([]string, len(matches))
	for i, m := range matches {
		hashes[i] = m.ContentHash
		if err := s.metadata.Delete(ctx, m.ContentHash); err != nil {
			return i, err
		}
	}
	if err := s.vectors.Delete(ctx, hashes); err != nil {
		return len(hashes), err
	}
	return len(hashes), nil
}

func (s *Store) DeleteByTimeframe(ctx context.Context, start, end int64) (int, error) {
	all, err := s.GetAllBulk(ctx, 20, 1000)
	if err != nil {
		return 0, err
	}
	var hashes []string
	for _, m := range all {
		if int64(m.CreatedAt) >= start && int64(m.CreatedAt) <= end {
			hashes = append(hashes, m.ContentHash)
		}
	}
	return len(hashes), s.deleteHashes(ctx, hashes)
}

func (s *Store) DeleteBeforeDate(ctx context.Context, before int64) (int, error) {
	all, err := s.GetAllBulk(ctx, 20, 1000)
	if err != nil {
		return 0, err
	}
	var hashes []string
	for _, m := range all {
		if int64(m.CreatedAt) < before {
			hashes = append(hashes, m.ContentHash)
		}
	}
	return len(hashes), s.deleteHashes(ctx, hashes)
}

func (s *Store) deleteHashes(ctx context.Context, hashes []string) error {
	for _, h := range hashes {
		if err := s.metadata.Delete(ctx, h); err != nil {
			return err
		}
	}
	return s.vectors.Delete(ctx, hashes)
}

// Health reports vector count and capacity usage against the published
// index limit, logging a warning at 80% and an error (critical) at 95%.
// UniqueTags/MemoriesThisWeek/DatabaseSize are left zero: the remote leg has
// no equivalent of a local on-disk file to size, and deriving them here
// would mean a full bulk scan on every health check.
func (s *Store) Health(ctx context.Context) (storage.Stats, error) {
	count, err := s.vectors.CountApprox(ctx)
	if err != nil {
		return storage.Stats{}, err
	}
	capacityUsed := 0.0
	if s.cfg.VectorLimit > 0 {
		capacityUsed = float64(count) / float64(s.cfg.VectorLimit)
	}
	switch {
	case capacityUsed >= 0.95:
		s.log.Error("cloud vector index at critical capacity", "vector_count", count, "capacity_used", capacityUsed)
	case capacityUsed >= 0.80:
		s.log.Warn("cloud vector index nearing capacity", "vector_count", count, "capacity_used", capacityUsed)
	}
	return storage.Stats{
		TotalMemories:      int64(count),
		VectorCount:        int64(count),
		CapacityUsed:       capacityUsed,
		Backend:            "cloud",
		EmbeddingModel:     s.cfg.EmbeddingModel,
		EmbeddingDimension: s.cfg.EmbeddingDim,
		Version:            storage.Version,
	}, nil
}

// PauseSync/ResumeSync/GetSyncStatus are no-ops: the cloud store is only ever
// a secondary behind the hybrid store, which owns sync state.
func (s *Store) PauseSync(ctx context.Context) error  { return nil }
func (s *Store) ResumeSync(ctx context.Context) error { return nil }
func (s *Store) GetSyncStatus(ctx context.Context) (storage.SyncStatus, error) {
	return storage.SyncStatus{}, nil
}

// filterMemories applies f over a bulk-loaded memory set. Archived memories
// are excluded unless the caller asks for a specific memory_type, mirroring
// buildWhere's default in the local store.
func filterMemories(all []*memory.Memory, f storage.Filter) []*memory.Memory {
	var out []*memory.Memory
	for _, m := range all {
		if f.MemoryType != "" {
			if m.Type != f.MemoryType {
				continue
			}
		} else if m.Type == memory.TypeArchived {
			continue
		}
		if f.TimeStart > 0 && int64(m.CreatedAt) < f.TimeStart {
			continue
		}
		if f.TimeEnd > 0 && int64(m.CreatedAt) > f.TimeEnd {
			continue
		}
		if len(f.Tags) > 0 && !tagsMatch(m.Tags, f.Tags, f.MatchAll) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func tagsMatch(have, want []string, matchAll bool) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	if matchAll {
		for _, w := range want {
			if !set[w] {
				return false
			}
		}
		return true
	}
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

func paginate(all []*memory.Memory, offset, limit int) []*memory.Memory {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
