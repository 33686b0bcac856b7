// Package localstore implements the local SQLite-backed storage backend: one
// file holding metadata, a tag index, an FTS index, and brute-force cosine
// search over BLOB-encoded embeddings.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/embedding"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// Config configures connection parameters, all of which must be set at
// connect time through the DSN rather than applied as post-hoc pragmas.
type Config struct {
	Path           string
	BusyMS         int
	CacheKB        int
	EmbeddingDim   int
	EmbeddingModel string
}

// Store implements storage.Backend over a single SQLite file.
type Store struct {
	db             *sql.DB
	embedder       embedding.Provider
	dims           int
	embeddingModel string
}

// Open connects to the SQLite file with WAL, the busy timeout, cache size,
// and foreign keys all passed in the DSN so they apply from first use, and
// runs migrate() which is safe to call concurrently from a second process
// attaching to the same file.
func Open(cfg Config, embedder embedding.Provider) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL&_cache_size=-%d&_foreign_keys=on",
		cfg.Path, cfg.BusyMS, cfg.CacheKB,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		if isExtensionError(err) {
			return nil, merrors.Storage(err, "sqlite binding cannot load extensions; pick a different storage backend")
		}
		return nil, merrors.Storage(err, "opening sqlite database at %s", cfg.Path)
	}
	db.SetMaxOpenConns(1)

	if _, err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	dims := cfg.EmbeddingDim
	if dims <= 0 {
		dims = memory.EmbeddingDim
	}
	if err := setMetadataInt(db, "embedding_dim", dims); err != nil {
		db.Close()
		return nil, merrors.Storage(err, "recording embedding dimension")
	}
	return &Store{db: db, embedder: embedder, dims: dims, embeddingModel: cfg.EmbeddingModel}, nil
}

// isExtensionError reports whether the driver failed because
// enable_load_extension is unavailable, a common macOS system-sqlite
// failure mode worth failing fast and loud on.
func isExtensionError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "extension")
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Store(ctx context.Context, m *memory.Memory) (bool, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE content_hash = ?`, m.ContentHash).Scan(&exists); err == nil {
		return false, nil
	} else if err != sql.ErrNoRows {
		return false, merrors.Storage(err, "checking for existing memory %s", m.ContentHash)
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

	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return false, merrors.Storage(err, "encoding metadata for %s", m.ContentHash)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, merrors.Storage(err, "beginning store transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memories(content_hash, content, memory_type, created_at, updated_at, metadata_json, quality_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ContentHash, m.Content, m.Type, m.CreatedAt, m.UpdatedAt, string(metaJSON), m.Quality); err != nil {
		return false, merrors.Storage(err, "inserting memory row %s", m.ContentHash)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO memory_embeddings(content_hash, vector) VALUES (?, ?)`,
		m.ContentHash, encodeVector(vec)); err != nil {
		return false, merrors.Storage(err, "inserting embedding for %s", m.ContentHash)
	}

	for _, tag := range m.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO memory_tags(content_hash, tag) VALUES (?, ?)`, m.ContentHash, tag); err != nil {
			return false, merrors.Storage(err, "inserting tag %q for %s", tag, m.ContentHash)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO memory_fts(content_hash, content) VALUES (?, ?)`, m.ContentHash, m.Content); err != nil {
		return false, merrors.Storage(err, "indexing content for %s", m.ContentHash)
	}

	if err := tx.Commit(); err != nil {
		return false, merrors.Storage(err, "committing store transaction for %s", m.ContentHash)
	}
	return true, nil
}

func (s *Store) GetByHash(ctx context.Context, hash string) (*memory.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT content_hash, content, memory_type, created_at, updated_at, metadata_json, quality_score FROM memories WHERE content_hash = ?`, hash)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, merrors.NotFound("memory %s not found", hash)
	}
	if err != nil {
		return nil, merrors.Storage(err, "reading memory %s", hash)
	}
	if err := s.attachTags(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func scanMemory(row *sql.Row) (*memory.Memory, error) {
	var m memory.Memory
	var metaJSON string
	var quality sql.NullFloat64
	if err := row.Scan(&m.ContentHash, &m.Content, &m.Type, &m.CreatedAt, &m.UpdatedAt, &metaJSON, &quality); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
		return nil, err
	}
	if quality.Valid {
		q := quality.Float64
		m.Quality = &q
	}
	return &m, nil
}

func (s *Store) attachTags(ctx context.Context, m *memory.Memory) error {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM memory_tags WHERE content_hash = ? ORDER BY tag`, m.ContentHash)
	if err != nil {
		return merrors.Storage(err, "reading tags for %s", m.ContentHash)
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return merrors.Storage(err, "scanning tag row for %s", m.ContentHash)
		}
		tags = append(tags, tag)
	}
	m.Tags = tags
	return nil
}

func (s *Store) GetAll(ctx context.Context, f storage.Filter) ([]*memory.Memory, error) {
	where, args := buildWhere(f)
	query := `SELECT content_hash, content, memory_type, created_at, updated_at, metadata_json, quality_score FROM memories` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}
	return s.queryMemories(ctx, query, args...)
}

func (s *Store) GetRecent(ctx context.Context, n int) ([]*memory.Memory, error) {
	return s.GetAll(ctx, storage.Filter{Limit: n})
}

func (s *Store) GetMemoryTimestamps(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content_hash, created_at FROM memories`)
	if err != nil {
		return nil, merrors.Storage(err, "bulk-reading timestamps")
	}
	defer rows.Close()
	out := map[string]float64{}
	for rows.Next() {
		var hash string
		var ts float64
		if err := rows.Scan(&hash, &ts); err != nil {
			return nil, merrors.Storage(err, "scanning timestamp row")
		}
		out[hash] = ts
	}
	return out, nil
}

func (s *Store) GetLargest(ctx context.Context, n int) ([]*memory.Memory, error) {
	query := `SELECT content_hash, content, memory_type, created_at, updated_at, metadata_json, quality_score FROM memories ORDER BY LENGTH(content) DESC LIMIT ?`
	return s.queryMemories(ctx, query, n)
}

func (s *Store) CountAll(ctx context.Context, f storage.Filter) (int64, error) {
	where, args := buildWhere(f)
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`+where, args...).Scan(&count); err != nil {
		return 0, merrors.Storage(err, "counting memories")
	}
	return count, nil
}

func (s *Store) queryMemories(ctx context.Context, query string, args ...interface{}) ([]*memory.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, merrors.Storage(err, "querying memories")
	}
	defer rows.Close()

	var out []*memory.Memory
	for rows.Next() {
		var m memory.Memory
		var metaJSON string
		var quality sql.NullFloat64
		if err := rows.Scan(&m.ContentHash, &m.Content, &m.Type, &m.CreatedAt, &m.UpdatedAt, &metaJSON, &quality); err != nil {
			return nil, merrors.Storage(err, "scanning memory row")
		}
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return nil, merrors.Storage(err, "decoding metadata for %s", m.ContentHash)
		}
		if quality.Valid {
			q := quality.Float64
			m.Quality = &q
		}
		out = append(out, &m)
	}
	for _, m := range out {
		if err := s.attachTags(ctx, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetAllWithEmbeddings returns every memory updated within [timeStart,
// timeEnd] (either bound 0 means unbounded) joined with its stored vector,
// for consolidation's clustering phase. Rows with no embedding are skipped.
func (s *Store) GetAllWithEmbeddings(ctx context.Context, timeStart, timeEnd float64) ([]*memory.Memory, error) {
	query := `
		SELECT m.content_hash, m.content, m.memory_type, m.created_at, m.updated_at, m.metadata_json, m.quality_score, e.vector
		FROM memories m
		JOIN memory_embeddings e ON e.content_hash = m.content_hash
		WHERE (? = 0 OR m.updated_at >= ?) AND (? = 0 OR m.updated_at <= ?)`
	rows, err := s.db.QueryContext(ctx, query, timeStart, timeStart, timeEnd, timeEnd)
	if err != nil {
		return nil, merrors.Storage(err, "querying memories with embeddings")
	}
	defer rows.Close()

	var out []*memory.Memory
	for rows.Next() {
		var m memory.Memory
		var metaJSON string
		var quality sql.NullFloat64
		var vecBuf []byte
		if err := rows.Scan(&m.ContentHash, &m.Content, &m.Type, &m.CreatedAt, &m.UpdatedAt, &metaJSON, &quality, &vecBuf); err != nil {
			return nil, merrors.Storage(err, "scanning memory+embedding row")
		}
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return nil, merrors.Storage(err, "decoding metadata for %s", m.ContentHash)
		}
		if quality.Valid {
			q := quality.Float64
			m.Quality = &q
		}
		vec, err := decodeVector(vecBuf)
		if err != nil {
			return nil, merrors.Storage(err, "decoding embedding for %s", m.ContentHash)
		}
		m.Embedding = vec
		out = append(out, &m)
	}
	for _, m := range out {
		if err := s.attachTags(ctx, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// buildWhere renders the tag/type/time filter used by GetAll, CountAll,
// SearchByTag and Retrieve. Tag matching is OR-based by default; match_all
// uses a HAVING count. Archived memories are excluded unless the caller asks
// for a specific memory_type, so they stay reachable by explicit filter only.
func buildWhere(f storage.Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.MemoryType != "" {
		conds = append(conds, "memory_type = ?")
		args = append(args, f.MemoryType)
	} else {
		conds = append(conds, "memory_type != ?")
		args = append(args, memory.TypeArchived)
	}
	if f.TimeStart > 0 {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.TimeStart)
	}
	if f.TimeEnd > 0 {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.TimeEnd)
	}
	if len(f.Tags) > 0 {
		placeholders := make([]string, len(f.Tags))
		for i, t := range f.Tags {
			placeholders[i] = "?"
			args = append(args, t)
		}
		if f.MatchAll {
			conds = append(conds, fmt.Sprintf(
				"content_hash IN (SELECT content_hash FROM memory_tags WHERE tag IN (%s) GROUP BY content_hash HAVING COUNT(DISTINCT tag) = %d)",
				strings.Join(placeholders, ","), len(f.Tags)))
		} else {
			conds = append(conds, fmt.Sprintf(
				"content_hash IN (SELECT content_hash FROM memory_tags WHERE tag IN (%s))",
				strings.Join(placeholders, ",")))
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) SearchByTag(ctx context.Context, tags []string, matchAll bool, timeStart int64) ([]*memory.Memory, error) {
	f := storage.Filter{Tags: tags, MatchAll: matchAll, TimeStart: timeStart}
	where, args := buildWhere(f)
	query := `SELECT content_hash, content, memory_type, created_at, updated_at, metadata_json, quality_score FROM memories` + where + ` ORDER BY created_at DESC`
	return s.queryMemories(ctx, query, args...)
}

// GetAllTags returns every distinct tag across stored memories, sorted.
func (s *Store) GetAllTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tag FROM memory_tags ORDER BY tag`)
	if err != nil {
		return nil, merrors.Storage(err, "reading distinct tags")
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, merrors.Storage(err, "scanning tag row")
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *Store) UpdateMetadata(ctx context.Context, hash string, patch map[string]interface{}) error {
	m, err := s.GetByHash(ctx, hash)
	if err != nil {
		return err
	}
	for k, v := range patch {
		m.Metadata[k] = v
	}
	m.Touch()
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return merrors.Storage(err, "encoding metadata patch for %s", hash)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE memories SET metadata_json = ?, updated_at = ? WHERE content_hash = ?`, string(metaJSON), m.UpdatedAt, hash)
	if err != nil {
		return merrors.Storage(err, "updating metadata for %s", hash)
	}
	return nil
}

func (s *Store) UpdateContent(ctx context.Context, hash string, content string) error {
	m, err := s.GetByHash(ctx, hash)
	if err != nil {
		return err
	}
	m.Touch()
	_, err = s.db.ExecContext(ctx, `UPDATE memories SET content = ?, updated_at = ? WHERE content_hash = ?`, content, m.UpdatedAt, hash)
	if err != nil {
		return merrors.Storage(err, "updating content for %s", hash)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE memory_fts SET content = ? WHERE content_hash = ?`, content, hash)
	if err != nil {
		return merrors.Storage(err, "updating fts index for %s", hash)
	}
	return nil
}

// UpdateMemoriesBatch applies every update inside one transaction, the
// optimization the cloud store's per-request leg cannot offer.
func (s *Store) UpdateMemoriesBatch(ctx context.Context, memories []*memory.Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return merrors.Storage(err, "beginning batch update transaction")
	}
	defer tx.Rollback()

	for _, m := range memories {
		metaJSON, err := json.Marshal(m.Metadata)
		if err != nil {
			return merrors.Storage(err, "encoding metadata for %s", m.ContentHash)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE memories SET content = ?, memory_type = ?, updated_at = ?, metadata_json = ?, quality_score = ?
			WHERE content_hash = ?`,
			m.Content, m.Type, m.UpdatedAt, string(metaJSON), m.Quality, m.ContentHash); err != nil {
			return merrors.Storage(err, "batch-updating %s", m.ContentHash)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE content_hash = ?`, m.ContentHash); err != nil {
			return merrors.Storage(err, "clearing tags for %s", m.ContentHash)
		}
		for _, tag := range m.Tags {
			if _, err := tx.ExecContext(ctx, `INSERT INTO memory_tags(content_hash, tag) VALUES (?, ?)`, m.ContentHash, tag); err != nil {
				return merrors.Storage(err, "batch-inserting tag %q for %s", tag, m.ContentHash)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return merrors.Storage(err, "committing batch update")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, hash string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE content_hash = ?`, hash).Scan(&exists)
	if err == sql.ErrNoRows {
		return merrors.NotFound("memory %s not found", hash)
	}
	if err != nil {
		return merrors.Storage(err, "checking memory %s before delete", hash)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return merrors.Storage(err, "beginning delete transaction")
	}
	defer tx.Rollback()
	if err := deleteByHashes(ctx, tx, []string{hash}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return merrors.Storage(err, "committing delete for %s", hash)
	}
	return nil
}

func (s *Store) DeleteByTags(ctx context.Context, tags []string) (int, error) {
	matches, err := s.SearchByTag(ctx, tags, false, 0)
	if err != nil {
		return 0, err
	}
	return s.deleteMatches(ctx, matches)
}

func (s *Store) DeleteByTimeframe(ctx context.Context, start, end int64) (int, error) {
	matches, err := s.GetAll(ctx, storage.Filter{TimeStart: start, TimeEnd: end})
	if err != nil {
		return 0, err
	}
	return s.deleteMatches(ctx, matches)
}

func (s *Store) DeleteBeforeDate(ctx context.Context, before int64) (int, error) {
	matches, err := s.GetAll(ctx, storage.Filter{TimeEnd: before})
	if err != nil {
		return 0, err
	}
	return s.deleteMatches(ctx, matches)
}

func (s *Store) deleteMatches(ctx context.Context, matches []*memory.Memory) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	hashes := make([]string, len(matches))
	for i, m := range matches {
		hashes[i] = m.ContentHash
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, merrors.Storage(err, "beginning bulk delete transaction")
	}
	defer tx.Rollback()
	if err := deleteByHashes(ctx, tx, hashes); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, merrors.Storage(err, "committing bulk delete")
	}
	return len(hashes), nil
}

func deleteByHashes(ctx context.Context, tx *sql.Tx, hashes []string) error {
	placeholders := make([]string, len(hashes))
	args := make([]interface{}, len(hashes))
	for i, h := range hashes {
		placeholders[i] = "?"
		args[i] = h
	}
	in := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM memory_tags WHERE content_hash IN (%s)`, in), args...); err != nil {
		return merrors.Storage(err, "deleting tag rows")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM memory_embeddings WHERE content_hash IN (%s)`, in), args...); err != nil {
		return merrors.Storage(err, "deleting embedding rows")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM memory_fts WHERE content_hash IN (%s)`, in), args...); err != nil {
		return merrors.Storage(err, "deleting fts rows")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM memories WHERE content_hash IN (%s)`, in), args...); err != nil {
		return merrors.Storage(err, "deleting memory rows")
	}
	return nil
}

func (s *Store) Health(ctx context.Context) (storage.Stats, error) {
	weekAgo := time.Now().Add(-7 * 24 * time.Hour).Unix()
	disk, err := s.DiskUsage(ctx, weekAgo)
	if err != nil {
		return storage.Stats{}, err
	}
	return storage.Stats{
		TotalMemories:      disk.MemoryCount,
		VectorCount:        disk.MemoryCount,
		Backend:            "sqlite_vec",
		UniqueTags:         disk.UniqueTags,
		MemoriesThisWeek:   disk.MemoriesThisWeek,
		DatabaseSizeBytes:  disk.SizeBytes,
		DatabaseSizeMB:     float64(disk.SizeBytes) / (1024 * 1024),
		EmbeddingModel:     s.embeddingModel,
		EmbeddingDimension: s.dims,
		Version:            storage.Version,
	}, nil
}

// PauseSync/ResumeSync/GetSyncStatus are no-ops: the local store never talks
// to a remote leg, only the hybrid store owns sync state.
func (s *Store) PauseSync(ctx context.Context) error  { return nil }
func (s *Store) ResumeSync(ctx context.Context) error { return nil }
func (s *Store) GetSyncStatus(ctx context.Context) (storage.SyncStatus, error) {
	return storage.SyncStatus{}, nil
}
