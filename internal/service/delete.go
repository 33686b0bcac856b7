package service

import (
	"context"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
)

// DeleteResult is Delete's return shape.
type DeleteResult struct {
	Success bool
	Error   string
}

// BulkDeleteResult is the return shape for every delete operation that can
// remove more than one memory at once.
type BulkDeleteResult struct {
	Deleted int
	Errors  []string
}

// Delete removes a single memory by content_hash.
func (f *Facade) Delete(ctx context.Context, hash string) (DeleteResult, error) {
	if err := f.backend.Delete(ctx, hash); err != nil {
		return DeleteResult{Success: false, Error: err.Error()}, nil
	}
	return DeleteResult{Success: true}, nil
}

// DeleteByTags removes every memory carrying any of the given tags.
func (f *Facade) DeleteByTags(ctx context.Context, tags []string) (BulkDeleteResult, error) {
	n, err := f.backend.DeleteByTags(ctx, memory.NormalizeTags(tags))
	if err != nil {
		return BulkDeleteResult{Errors: []string{err.Error()}}, nil
	}
	return BulkDeleteResult{Deleted: n}, nil
}

// DeleteByTimeframe removes every memory created within [start, end].
func (f *Facade) DeleteByTimeframe(ctx context.Context, start, end int64) (BulkDeleteResult, error) {
	n, err := f.backend.DeleteByTimeframe(ctx, start, end)
	if err != nil {
		return BulkDeleteResult{Errors: []string{err.Error()}}, nil
	}
	return BulkDeleteResult{Deleted: n}, nil
}

// DeleteBeforeDate removes every memory created before the given timestamp.
func (f *Facade) DeleteBeforeDate(ctx context.Context, before int64) (BulkDeleteResult, error) {
	n, err := f.backend.DeleteBeforeDate(ctx, before)
	if err != nil {
		return BulkDeleteResult{Errors: []string{err.Error()}}, nil
	}
	return BulkDeleteResult{Deleted: n}, nil
}

// UpdateResult is UpdateMetadata's and UpdateContent's return shape.
type UpdateResult struct {
	Success bool
	Error   string
}

// UpdateMetadata merges patch into the memory's existing metadata. Tags
// embedded under patch["tags"] are normalized and merged the same way
// StoreMemory merges them.
func (f *Facade) UpdateMetadata(ctx context.Context, hash string, patch map[string]interface{}) (UpdateResult, error) {
	if raw, ok := patch["tags"]; ok {
		patch["tags"] = NormalizeTags(raw)
	}
	if err := f.backend.UpdateMetadata(ctx, hash, patch); err != nil {
		return UpdateResult{Success: false, Error: err.Error()}, nil
	}
	return UpdateResult{Success: true}, nil
}

// UpdateContent replaces a memory's content in place without changing its
// content_hash. Storing a content change under a new hash is the more
// common path, via StoreMemory.
func (f *Facade) UpdateContent(ctx context.Context, hash, content string) (UpdateResult, error) {
	if err := f.backend.UpdateContent(ctx, hash, content); err != nil {
		return UpdateResult{Success: false, Error: err.Error()}, nil
	}
	return UpdateResult{Success: true}, nil
}
