package consolidation

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

const secondsPerDay = 86400.0

// decayWorkers bounds how many memories are scored concurrently; the
// formula itself is pure and allocation-free, so this only exists to keep
// a very large corpus from serializing entirely on CPU.
const decayWorkers = 8

// runDecay is phase 1: compute relevance_score for every memory touched by
// horizon and write it via a single batch update.
func (p *Pipeline) runDecay(ctx context.Context, runID string, horizon Horizon) (PhaseResult, error) {
	memories, err := p.store.GetAll(ctx, storage.Filter{
		TimeStart: int64(horizon.startSeconds()),
		TimeEnd:   int64(horizon.endSeconds()),
	})
	if err != nil {
		return PhaseResult{}, err
	}

	now := p.nowFunc()
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(decayWorkers)
	for _, m := range memories {
		m := m
		g.Go(func() error {
			score := p.decayScore(m, now)
			if m.Metadata == nil {
				m.Metadata = make(map[string]interface{})
			}
			m.Metadata[memory.MetaRelevanceScore] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PhaseResult{}, err
	}

	if len(memories) > 0 {
		if err := p.store.UpdateMemoriesBatch(ctx, memories); err != nil {
			return PhaseResult{}, err
		}
	}

	return PhaseResult{Ran: true, MemoriesScored: len(memories)}, nil
}

// decayScore implements the relevance formula: exponential decay by
// memory-type half-life, boosted by recent access frequency.
func (p *Pipeline) decayScore(m *memory.Memory, now time.Time) float64 {
	ageDays := now.Sub(time.Unix(int64(m.CreatedAt), 0).UTC()).Seconds() / secondsPerDay
	baseDecay := math.Exp(-ageDays / p.halfLifeDays(m.Type))

	accessBoost := 0.0
	lastAccessed := m.LastAccessedAt()
	if lastAccessed > 0 && now.Sub(time.Unix(int64(lastAccessed), 0).UTC()).Hours() <= 30*24 {
		accessBoost = math.Min(0.5, math.Log(1+float64(m.AccessCount()))*0.1)
	}

	return clamp01(baseDecay + accessBoost)
}

func (p *Pipeline) halfLifeDays(memType string) float64 {
	if v, ok := p.cfg.HalfLifeDays[memType]; ok {
		return v
	}
	if v, ok := p.cfg.HalfLifeDays["default"]; ok {
		return v
	}
	return 30
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
