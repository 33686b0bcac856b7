package localstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/syncqueue"
)

// RecordFailure persists a sync operation that exhausted its retries or hit
// a permanent error, implementing syncqueue.FailureRecorder against the
// local store's own file so a failed cloud sync is never silently dropped.
func (s *Store) RecordFailure(ctx context.Context, op syncqueue.Operation) error {
	payload, err := json.Marshal(op.Payload)
	if err != nil {
		payload = []byte("null")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_failures(op_id, content_hash, kind, payload_json, attempts, last_error, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(op_id) DO UPDATE SET
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			failed_at = excluded.failed_at`,
		op.OpID, op.ContentHash, string(op.Kind), string(payload), op.Attempts, op.LastError, float64(time.Now().Unix()))
	if err != nil {
		return merrors.Storage(err, "recording sync failure for %s", op.ContentHash)
	}
	return nil
}

// CountSyncFailures reports how many permanently failed sync ops are on
// file, surfaced through the hybrid store's sync status.
func (s *Store) CountSyncFailures(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_failures`).Scan(&n); err != nil {
		return 0, merrors.Storage(err, "counting sync failures")
	}
	return n, nil
}
