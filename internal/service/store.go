package service

import (
	"context"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/chunking"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
)

// StoreResult is StoreMemory's return shape. ChunksCreated/ChunkHashes are
// populated only when content was split into more than one memory.
type StoreResult struct {
	Success       bool
	Error         string
	ContentHash   string
	ChunksCreated int
	ChunkHashes   []string
}

// StoreMemory validates, normalizes, optionally splits, stores, and
// best-effort quality-scores content. client_hostname-style tagging is
// applied automatically when the facade was built with includeHostnameTag.
func (f *Facade) StoreMemory(ctx context.Context, content string, tags []string, memType string, metadata map[string]interface{}) (StoreResult, error) {
	normalizedTags := mergeTags(tags, metadata)
	if f.tagHost && f.hostname != "" {
		normalizedTags = memory.NormalizeTags(append(normalizedTags, "source:"+f.hostname))
	}

	chunks := chunking.Split(content, f.chunker)
	if len(chunks) == 1 {
		return f.storeSingle(ctx, content, normalizedTags, memType, metadata)
	}
	return f.storeChunks(ctx, chunks, normalizedTags, memType, metadata)
}

func (f *Facade) storeSingle(ctx context.Context, content string, tags []string, memType string, metadata map[string]interface{}) (StoreResult, error) {
	m, err := memory.New(content, tags, memType, metadata)
	if err != nil {
		return StoreResult{Success: false, Error: err.Error()}, nil
	}
	m.Quality = f.scoreQuality(content)

	created, err := f.backend.Store(ctx, m)
	if err != nil {
		return StoreResult{Success: false, Error: err.Error()}, nil
	}
	if !created {
		f.log.Info("store: duplicate content_hash, no-op", "content_hash", m.ContentHash)
	}
	return StoreResult{Success: true, ContentHash: m.ContentHash}, nil
}

func (f *Facade) storeChunks(ctx context.Context, chunks []chunking.Chunk, tags []string, memType string, metadata map[string]interface{}) (StoreResult, error) {
	hashes := make([]string, 0, len(chunks))
	for _, c := range chunks {
		chunkMeta := cloneMetadata(metadata)
		chunkMeta[memory.MetaIsChunk] = true
		chunkMeta[memory.MetaChunkIndex] = c.Index
		chunkMeta[memory.MetaTotalChunks] = c.Total
		chunkMeta[memory.MetaOriginalLength] = c.OriginalLength

		chunkTags := memory.NormalizeTags(append(append([]string{}, tags...), memory.ChunkTag(c.Index, c.Total)))

		m, err := memory.New(c.Content, chunkTags, memType, chunkMeta)
		if err != nil {
			return StoreResult{Success: false, Error: err.Error()}, nil
		}
		m.Quality = f.scoreQuality(c.Content)

		if _, err := f.backend.Store(ctx, m); err != nil {
			return StoreResult{Success: false, Error: err.Error()}, nil
		}
		hashes = append(hashes, m.ContentHash)
	}
	return StoreResult{Success: true, ChunksCreated: len(hashes), ChunkHashes: hashes}, nil
}

func cloneMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+4)
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
