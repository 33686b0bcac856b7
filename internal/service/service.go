// Package service provides the single business-logic facade used by every
// transport. It holds a reference to the active storage backend and
// contains no transport code: no JSON-RPC framing, no HTTP handlers, no CLI
// flag parsing. Every method returns a plain result struct with a Success
// field; callers format user-visible strings from those fields themselves.
package service

import (
	"context"
	"os"
	"strings"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/chunking"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/quality"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// Facade is the single class both transports talk to.
type Facade struct {
	backend  storage.Backend
	scorer   quality.Scorer
	chunker  chunking.Policy
	log      logging.Logger
	hostname string
	tagHost  bool
}

// New builds a Facade bound to backend. chunkPolicy is the active backend's
// content-length policy (unlimited for local, 800/50 for cloud and hybrid).
// scorer may be nil, in which case quality scoring is skipped rather than
// failing the store.
func New(backend storage.Backend, scorer quality.Scorer, chunkPolicy chunking.Policy, includeHostnameTag bool, log logging.Logger) *Facade {
	f := &Facade{
		backend: backend,
		scorer:  scorer,
		chunker: chunkPolicy,
		log:     log.WithComponent("service"),
		tagHost: includeHostnameTag,
	}
	if includeHostnameTag {
		if h, err := os.Hostname(); err == nil {
			f.hostname = h
		}
	}
	return f
}

// NormalizeTags implements the DRY tag-normalization contract: nil input
// becomes an empty list, a single comma-bearing string is split on commas,
// a single plain string becomes a one-element list, anything else is
// treated as an already-split slice. Every path ends in the same
// trim/dedupe pass in memory.NormalizeTags, which keeps first-seen order.
func NormalizeTags(input interface{}) []string {
	switch v := input.(type) {
	case nil:
		return memory.NormalizeTags(nil)
	case string:
		if strings.Contains(v, ",") {
			return memory.NormalizeTags(strings.Split(v, ","))
		}
		return memory.NormalizeTags([]string{v})
	case []string:
		return memory.NormalizeTags(v)
	default:
		return memory.NormalizeTags(nil)
	}
}

// mergeTags normalizes and merges tags supplied as a parameter with any
// tags embedded in a metadata map under the "tags" key, per 4.11.1's
// "merged with dedup" rule.
func mergeTags(tags []string, metadata map[string]interface{}) []string {
	merged := append([]string{}, tags...)
	if metadata != nil {
		if raw, ok := metadata["tags"]; ok {
			merged = append(merged, NormalizeTags(raw)...)
		}
	}
	return memory.NormalizeTags(merged)
}

func (f *Facade) scoreQuality(content string) *float64 {
	if f.scorer == nil {
		return nil
	}
	score := f.scorer.Score(content)
	return &score
}

// Health reports backend-wide stats plus the sync queue state when the
// active backend is the hybrid store.
func (f *Facade) Health(ctx context.Context) (HealthResult, error) {
	stats, err := f.backend.Health(ctx)
	if err != nil {
		return HealthResult{Success: false, Error: err.Error()}, nil
	}
	sync, err := f.backend.GetSyncStatus(ctx)
	if err != nil {
		return HealthResult{Success: false, Error: err.Error()}, nil
	}
	return HealthResult{Success: true, Stats: stats, Sync: sync}, nil
}

// HealthResult is Health's return shape.
type HealthResult struct {
	Success bool
	Error   string
	Stats   storage.Stats
	Sync    storage.SyncStatus
}
