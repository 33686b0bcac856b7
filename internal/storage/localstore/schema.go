package localstore

import (
	"database/sql"
	"strconv"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

const schemaVersionKey = "schema_version"
const distanceMetricKey = "distance_metric"
const currentSchemaVersion = "1"
const cosineMetric = "cosine"

// ddl is one SQL table for metadata, one for embeddings, one for tag
// association, one FTS index on content, and a small k/v metadata table.
// Embeddings are stored as a BLOB and scanned in Go rather than through a
// dedicated vector index extension.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS memories (
		content_hash TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		memory_type TEXT NOT NULL,
		created_at REAL NOT NULL,
		updated_at REAL NOT NULL,
		metadata_json TEXT NOT NULL,
		quality_score REAL
	)`,
	`CREATE TABLE IF NOT EXISTS memory_embeddings (
		content_hash TEXT PRIMARY KEY REFERENCES memories(content_hash) ON DELETE CASCADE,
		vector BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS memory_tags (
		content_hash TEXT NOT NULL REFERENCES memories(content_hash) ON DELETE CASCADE,
		tag TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_tags_tag_hash ON memory_tags(tag, content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(content_hash, content)`,
	`CREATE TABLE IF NOT EXISTS metadata (k TEXT PRIMARY KEY, v TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS sync_failures (
		op_id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload_json TEXT,
		attempts INTEGER NOT NULL,
		last_error TEXT NOT NULL,
		failed_at REAL NOT NULL
	)`,
}

// migrate runs DDL idempotently (concurrent init: a second process attaching
// to the same file must not error on tables that already exist) and checks
// the distance-metric migration: when the recorded metric is not cosine it
// deletes every stored embedding, records cosine, and returns needsReembed.
// It does not regenerate embeddings itself, and Open discards needsReembed,
// so memories whose embeddings were deleted are not returned by Retrieve.
func migrate(db *sql.DB) (needsReembed bool, err error) {
	for _, stmt := range ddl {
		if _, execErr := db.Exec(stmt); execErr != nil {
			return false, merrors.Migration(execErr, "applying schema statement")
		}
	}

	var metric string
	row := db.QueryRow(`SELECT v FROM metadata WHERE k = ?`, distanceMetricKey)
	scanErr := row.Scan(&metric)
	switch {
	case scanErr == sql.ErrNoRows:
		if _, execErr := db.Exec(`INSERT INTO metadata(k, v) VALUES (?, ?)`, distanceMetricKey, cosineMetric); execErr != nil {
			return false, merrors.Migration(execErr, "recording distance metric")
		}
	case scanErr != nil:
		return false, merrors.Migration(scanErr, "reading distance metric")
	case metric != cosineMetric:
		if _, execErr := db.Exec(`DELETE FROM memory_embeddings`); execErr != nil {
			return false, merrors.Migration(execErr, "clearing stale L2 embeddings")
		}
		if _, execErr := db.Exec(`UPDATE metadata SET v = ? WHERE k = ?`, cosineMetric, distanceMetricKey); execErr != nil {
			return false, merrors.Migration(execErr, "updating distance metric")
		}
		needsReembed = true
	}

	if _, execErr := db.Exec(`INSERT OR IGNORE INTO metadata(k, v) VALUES (?, ?)`, schemaVersionKey, currentSchemaVersion); execErr != nil {
		return false, merrors.Migration(execErr, "recording schema version")
	}

	return needsReembed, nil
}

func setMetadataInt(db *sql.DB, key string, value int) error {
	_, err := db.Exec(`INSERT INTO metadata(k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, strconv.Itoa(value))
	return err
}
