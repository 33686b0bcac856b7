package consolidation

import (
	"context"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// runQuality is phase 6: bulk-score every memory that carries a
// connection_count in its metadata (set by this run or by any earlier one)
// or still has no quality_score, skipped entirely if no scorer was
// configured. It does not restrict rescoring to memories whose associations
// were added in this run.
func (p *Pipeline) runQuality(ctx context.Context, runID string) (PhaseResult, error) {
	if p.scorer == nil {
		return PhaseResult{Ran: false, Skipped: true, SkipNote: "no quality scorer configured"}, nil
	}

	memories, err := p.store.GetAll(ctx, storage.Filter{})
	if err != nil {
		return PhaseResult{}, err
	}

	var batch []*memory.Memory
	for _, m := range memories {
		_, hasConnections := m.Metadata[memory.MetaConnectionCount]
		if m.Quality != nil && !hasConnections {
			continue
		}
		score := p.scorer.Score(m.Content)
		m.Quality = &score
		batch = append(batch, m)
	}

	if len(batch) > 0 {
		if err := p.store.UpdateMemoriesBatch(ctx, batch); err != nil {
			return PhaseResult{}, err
		}
	}

	return PhaseResult{Ran: true, QualityScored: len(batch)}, nil
}
