package consolidation

import (
	"context"
	"fmt"
	"time"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// runForgetting is phase 5: archive memories that have decayed past the
// relevance floor, gone stale, and aren't exempted by a pinned/critical tag.
func (p *Pipeline) runForgetting(ctx context.Context, runID string, horizon Horizon) (PhaseResult, error) {
	memories, err := p.store.GetAll(ctx, storage.Filter{
		TimeStart: int64(horizon.startSeconds()),
		TimeEnd:   int64(horizon.endSeconds()),
	})
	if err != nil {
		return PhaseResult{}, err
	}

	minAgeDays := p.cfg.ForgetMinAgeDays
	if minAgeDays == 0 {
		minAgeDays = 90
	}
	relevanceMax := p.cfg.ForgetRelevanceMax
	if relevanceMax == 0 {
		relevanceMax = 0.1
	}

	now := p.nowFunc()
	var batch []*memory.Memory
	for _, m := range memories {
		if m.HasTag(memory.TagPinned) || m.HasTag(memory.TagCritical) {
			continue
		}
		relevance, ok := m.Metadata[memory.MetaRelevanceScore].(float64)
		if !ok || relevance >= relevanceMax {
			continue
		}
		lastAccessed := m.LastAccessedAt()
		if lastAccessed == 0 {
			lastAccessed = m.CreatedAt
		}
		staleDays := now.Sub(time.Unix(int64(lastAccessed), 0).UTC()).Hours() / 24
		if staleDays <= minAgeDays {
			continue
		}

		m.Type = memory.TypeArchived
		m.Tags = memory.NormalizeTags(append(m.Tags, fmt.Sprintf("archived:%s", runID)))
		batch = append(batch, m)
	}

	if len(batch) > 0 {
		if err := p.store.UpdateMemoriesBatch(ctx, batch); err != nil {
			return PhaseResult{}, err
		}
	}

	return PhaseResult{Ran: true, Archived: len(batch)}, nil
}
