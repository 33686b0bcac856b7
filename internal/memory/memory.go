// Package memory defines the Memory record, its controlled vocabularies, and
// the normalization/validation rules every storage backend relies on.
package memory

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/contenthash"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

// EmbeddingDim is the canonical embedding width for the local vector space.
const EmbeddingDim = 384

// MaxTagLength is the longest a single tag may be after normalization.
const MaxTagLength = 100

// Reserved metadata keys the pipeline and storage layers manage themselves;
// callers must not set these directly through update requests.
const (
	MetaIsChunk           = "is_chunk"
	MetaChunkIndex        = "chunk_index"
	MetaTotalChunks       = "total_chunks"
	MetaOriginalLength    = "original_length"
	MetaCreatedAtISO      = "created_at_iso"
	MetaUpdatedAtISO      = "updated_at_iso"
	MetaQualityScore      = "quality_score"
	MetaConnectionCount   = "connection_count"
	MetaHostname          = "hostname"
	MetaRelatedMemories   = "related_memories"
	MetaRelatedSimilarity = "related_similarities"
	MetaRelevanceScore    = "relevance_score"
	MetaAccessCount       = "access_count"
	MetaLastAccessed      = "last_accessed"
)

// TagPinned and TagCritical exempt a memory from controlled forgetting
// regardless of how low its relevance score has decayed.
const (
	TagPinned   = "pinned"
	TagCritical = "critical"
)

// ValidTypes is the controlled vocabulary for Memory.Type.
var ValidTypes = map[string]bool{
	"note": true, "reference": true, "document": true, "guide": true,
	"session": true, "implementation": true, "analysis": true,
	"troubleshooting": true, "test": true, "fix": true, "feature": true,
	"release": true, "deployment": true, "milestone": true, "status": true,
	"configuration": true, "infrastructure": true, "process": true,
	"security": true, "architecture": true, "documentation": true,
	"solution": true, "achievement": true, "technical": true,
	"consolidation_summary": true, "archived": true,
}

// TypeArchived marks a memory excluded from default search (ArchivedMemory).
const TypeArchived = "archived"

// TypeConsolidationSummary marks a ConsolidationSummary memory.
const TypeConsolidationSummary = "consolidation_summary"

// Memory is the single record shape shared by every storage backend.
type Memory struct {
	ContentHash string
	Content     string
	Tags        []string
	Type        string
	Metadata    map[string]interface{}
	CreatedAt   float64
	UpdatedAt   float64
	Embedding   []float32
	Quality     *float64
}

// New builds a Memory from raw input, computing its content hash and
// normalizing tags. memType defaults to "note" when empty.
func New(content string, tags []string, memType string, metadata map[string]interface{}) (*Memory, error) {
	if strings.TrimSpace(content) == "" {
		return nil, merrors.Validation("content must not be empty")
	}
	if memType == "" {
		memType = "note"
	}
	if !ValidTypes[memType] {
		return nil, merrors.Validation("unknown memory_type %q", memType)
	}

	now := nowSeconds()
	m := &Memory{
		ContentHash: contenthash.Sum(content),
		Content:     content,
		Tags:        NormalizeTags(tags),
		Type:        memType,
		Metadata:    cloneMetadata(metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.syncISOTimestamps()
	return m, nil
}

// Validate checks structural invariants that must hold for any Memory before
// it reaches a storage backend.
func (m *Memory) Validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return merrors.Validation("content must not be empty")
	}
	if !contenthash.Valid(m.ContentHash) {
		return merrors.Validation("content_hash %q is not a valid 64-char hex sha256", m.ContentHash)
	}
	if m.Type != "" && !ValidTypes[m.Type] {
		return merrors.Validation("unknown memory_type %q", m.Type)
	}
	for _, tag := range m.Tags {
		if len(tag) > MaxTagLength {
			return merrors.Validation("tag %q exceeds %d characters", tag, MaxTagLength)
		}
	}
	if m.Quality != nil && (*m.Quality < 0 || *m.Quality > 1) {
		return merrors.Validation("quality_score %f out of range [0,1]", *m.Quality)
	}
	if len(m.Embedding) != 0 && len(m.Embedding) != EmbeddingDim {
		return merrors.Validation("embedding has %d dims, want %d", len(m.Embedding), EmbeddingDim)
	}
	return nil
}

// Touch bumps UpdatedAt to now and refreshes the paired ISO metadata field.
func (m *Memory) Touch() {
	m.UpdatedAt = nowSeconds()
	m.syncISOTimestamps()
}

// HasTag reports whether tag is present, case-sensitive, post-normalization.
func (m *Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AccessCount reads the access_count metadata field, defaulting to 0.
func (m *Memory) AccessCount() int {
	v, ok := m.Metadata[MetaAccessCount]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// LastAccessedAt reads the last_accessed metadata field (unix seconds),
// returning 0 if the memory has never been explicitly accessed.
func (m *Memory) LastAccessedAt() float64 {
	v, ok := m.Metadata[MetaLastAccessed]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

// RecordAccess bumps access_count and stamps last_accessed to now, called
// whenever retrieval surfaces this memory.
func (m *Memory) RecordAccess() {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[MetaAccessCount] = m.AccessCount() + 1
	m.Metadata[MetaLastAccessed] = nowSeconds()
}

// syncISOTimestamps regenerates the ISO-8601 companions of CreatedAt/UpdatedAt,
// since the numeric value is authoritative.
func (m *Memory) syncISOTimestamps() {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[MetaCreatedAtISO] = isoFromSeconds(m.CreatedAt)
	m.Metadata[MetaUpdatedAtISO] = isoFromSeconds(m.UpdatedAt)
}

// ReconcileTimestampDrift re-derives the ISO string whenever it disagrees
// with the numeric timestamp by more than one second.
func (m *Memory) ReconcileTimestampDrift() {
	if drifted(m.Metadata[MetaCreatedAtISO], m.CreatedAt) {
		m.Metadata[MetaCreatedAtISO] = isoFromSeconds(m.CreatedAt)
	}
	if drifted(m.Metadata[MetaUpdatedAtISO], m.UpdatedAt) {
		m.Metadata[MetaUpdatedAtISO] = isoFromSeconds(m.UpdatedAt)
	}
}

func drifted(isoValue interface{}, numeric float64) bool {
	s, ok := isoValue.(string)
	if !ok || s == "" {
		return true
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return true
	}
	diff := math.Abs(float64(parsed.Unix()) - numeric)
	return diff > 1.0
}

func isoFromSeconds(seconds float64) string {
	return time.Unix(int64(seconds), 0).UTC().Format(time.RFC3339)
}

// NormalizeTags applies the single DRY tag-normalization rule used wherever
// tags enter the system: trim, drop empties, dedupe, preserving the order
// tags were first seen in.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			continue
		}
		if seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}

// ChunkTag returns the auto tag format chunks carry, "chunk:i/N".
func ChunkTag(index, total int) string {
	return fmt.Sprintf("chunk:%d/%d", index, total)
}

func cloneMetadata(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return make(map[string]interface{})
	}
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

var nowSeconds = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
