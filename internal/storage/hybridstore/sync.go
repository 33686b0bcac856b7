package hybridstore

import (
	"context"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/syncqueue"
)

// DriftReport summarizes the outcome of one InitialSync pass.
type DriftReport struct {
	PulledFromSecondary int // present only in secondary, copied into primary
	PushedToSecondary   int // present only in primary, enqueued for secondary
	ReconciledNewer     int // present in both, newer side's content pushed
}

// InitialSync compares the primary's and secondary's hash sets and
// reconciles drift: secondary-only records are pulled into the primary,
// primary-only records are pushed to the secondary, and records present on
// both sides with different UpdatedAt have the newer one pushed to the
// older side. Bulk reads are bounded by MaxEmptyBatches/MinCheckCount so
// a mostly-empty secondary does not page forever.
func (s *Store) InitialSync(ctx context.Context) (DriftReport, error) {
	var report DriftReport

	primaryTimestamps, err := s.primary.GetMemoryTimestamps(ctx)
	if err != nil {
		return report, err
	}

	cloudStore, ok := s.secondary.(bulkReader)
	if !ok {
		return report, nil
	}
	secondaryAll, err := cloudStore.GetAllBulk(ctx, s.cfg.MaxEmptyBatches, s.cfg.MinCheckCount)
	if err != nil {
		return report, err
	}

	secondaryByHash := make(map[string]*memory.Memory, len(secondaryAll))
	for _, m := range secondaryAll {
		secondaryByHash[m.ContentHash] = m
	}

	for hash, m := range secondaryByHash {
		if _, inPrimary := primaryTimestamps[hash]; !inPrimary {
			if _, err := s.primary.Store(ctx, m); err == nil {
				report.PulledFromSecondary++
			}
			continue
		}
		primaryMem, err := s.primary.GetByHash(ctx, hash)
		if err != nil {
			continue
		}
		if primaryMem.UpdatedAt > m.UpdatedAt {
			s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindStore, hash, primaryMem))
			report.ReconciledNewer++
		} else if m.UpdatedAt > primaryMem.UpdatedAt {
			if err := s.primary.UpdateContent(ctx, hash, m.Content); err == nil {
				report.ReconciledNewer++
			}
		}
	}

	for hash := range primaryTimestamps {
		if _, inSecondary := secondaryByHash[hash]; inSecondary {
			continue
		}
		primaryMem, err := s.primary.GetByHash(ctx, hash)
		if err != nil {
			continue
		}
		s.enqueueOrInline(ctx, syncqueue.NewOperation(syncqueue.KindStore, hash, primaryMem))
		report.PushedToSecondary++
	}

	return report, nil
}

// bulkReader is implemented by cloudstore.Store; it lets InitialSync page
// through every secondary row without per-row tag lookups.
type bulkReader interface {
	GetAllBulk(ctx context.Context, maxEmptyBatches, minCheckCount int) ([]*memory.Memory, error)
}
