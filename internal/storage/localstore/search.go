package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// Retrieve embeds the query, scans every stored vector for cosine distance,
// and converts distance to similarity via s = 1 - d/2.
func (s *Store) Retrieve(ctx context.Context, query string, n int, threshold float64, f storage.Filter) ([]storage.SearchResult, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, merrors.Embedding(err, "embedding query")
	}

	where, args := buildWhere(storage.Filter{MemoryType: f.MemoryType, Tags: f.Tags, MatchAll: f.MatchAll, TimeStart: f.TimeStart, TimeEnd: f.TimeEnd})
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.content_hash, m.content, m.memory_type, m.created_at, m.updated_at, m.metadata_json, m.quality_score, e.vector
		FROM memories m JOIN memory_embeddings e ON e.content_hash = m.content_hash`+where, args...)
	if err != nil {
		return nil, merrors.Storage(err, "scanning embeddings for retrieve")
	}
	defer rows.Close()

	var results []storage.SearchResult
	for rows.Next() {
		var m memory.Memory
		var metaJSON string
		var quality sql.NullFloat64
		var blob []byte
		if err := rows.Scan(&m.ContentHash, &m.Content, &m.Type, &m.CreatedAt, &m.UpdatedAt, &metaJSON, &quality, &blob); err != nil {
			return nil, merrors.Storage(err, "scanning retrieve row")
		}
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return nil, merrors.Storage(err, "decoding metadata for %s", m.ContentHash)
		}
		if quality.Valid {
			q := quality.Float64
			m.Quality = &q
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}

		dist := cosineDistance(queryVec, vec)
		sim := similarityFromDistance(dist)
		if sim < threshold {
			continue
		}
		results = append(results, storage.SearchResult{Memory: &m, Similarity: sim, Distance: dist})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if n > 0 && n < len(results) {
		results = results[:n]
	}
	for _, r := range results {
		if err := s.attachTags(ctx, r.Memory); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Recall dispatches to Retrieve when a query string is given, otherwise to
// GetRecent filtered by the time window -- the fix for the empty-semantic-
// query bug, where calling a vector search with no text used to return
// nothing instead of the caller's intended "just the recent ones" result.
func (s *Store) Recall(ctx context.Context, query string, n int, timeStart, timeEnd int64) ([]*memory.Memory, error) {
	if query != "" {
		results, err := s.Retrieve(ctx, query, n, 0, storage.Filter{TimeStart: timeStart, TimeEnd: timeEnd})
		if err != nil {
			return nil, err
		}
		out := make([]*memory.Memory, len(results))
		for i, r := range results {
			out[i] = r.Memory
		}
		return out, nil
	}
	return s.GetAll(ctx, storage.Filter{Limit: n, TimeStart: timeStart, TimeEnd: timeEnd})
}

// DiskStats reports counters used by get_stats(): memory count, unique tag
// count, memories created within the last week, and on-disk size.
type DiskStats struct {
	MemoryCount      int64
	UniqueTags       int64
	MemoriesThisWeek int64
	SizeBytes        int64
}

func (s *Store) DiskUsage(ctx context.Context, weekAgo int64) (DiskStats, error) {
	var stats DiskStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&stats.MemoryCount); err != nil {
		return stats, merrors.Storage(err, "counting memories")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT tag) FROM memory_tags`).Scan(&stats.UniqueTags); err != nil {
		return stats, merrors.Storage(err, "counting unique tags")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE created_at >= ?`, weekAgo).Scan(&stats.MemoriesThisWeek); err != nil {
		return stats, merrors.Storage(err, "counting recent memories")
	}
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return stats, merrors.Storage(err, "reading page count")
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return stats, merrors.Storage(err, "reading page size")
	}
	stats.SizeBytes = pageCount * pageSize
	return stats, nil
}
