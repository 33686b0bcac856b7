package consolidation

import (
	"context"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/relationship"
)

// crossClusterSampleFactor bounds how many members of each cluster phase 3
// samples for every pair of clusters (at most 3x3 cross-cluster pairs per
// cluster pair), keeping the O(n^2) pair evaluation affordable.
const crossClusterSampleFactor = 3

// runAssociation is phase 3: evaluate pairwise similarity within each
// cluster and across a sample of cross-cluster pairs, recording edges whose
// similarity falls in the novel-but-not-duplicate band.
func (p *Pipeline) runAssociation(ctx context.Context, runID string, clusters clusterOutput) (PhaseResult, error) {
	if len(clusters.Clusters) == 0 {
		return PhaseResult{Ran: false, Skipped: true, SkipNote: "no clusters from phase 2"}, nil
	}

	minSim := p.cfg.AssociationMinSim
	maxSim := p.cfg.AssociationMaxSim
	if minSim == 0 && maxSim == 0 {
		minSim, maxSim = 0.3, 0.7
	}
	maxEdges := p.cfg.MaxNewEdgesPerRun
	if maxEdges == 0 {
		maxEdges = 200
	}

	touched := make(map[string]bool)
	edgesAdded := 0

	considerPair := func(a, b string) bool {
		if edgesAdded >= maxEdges {
			return false
		}
		if a == b || p.graph.Has(a, b) {
			return true
		}
		ma, mb := clusters.byMemories[a], clusters.byMemories[b]
		if ma == nil || mb == nil {
			return true
		}
		sim := cosineSimilarity(ma.Embedding, mb.Embedding)
		if sim < minSim || sim > maxSim {
			return true
		}
		p.graph.Add(relationship.Edge{HashA: a, HashB: b, Similarity: sim, DiscoveredAt: float64(p.nowFunc().Unix())})
		touched[a] = true
		touched[b] = true
		edgesAdded++
		return edgesAdded < maxEdges
	}

	for _, c := range clusters.Clusters {
		for i := 0; i < len(c.Hashes); i++ {
			for j := i + 1; j < len(c.Hashes); j++ {
				if !considerPair(c.Hashes[i], c.Hashes[j]) {
					break
				}
			}
		}
	}

	if edgesAdded < maxEdges {
		for ci := 0; ci < len(clusters.Clusters) && edgesAdded < maxEdges; ci++ {
			for cj := ci + 1; cj < len(clusters.Clusters) && edgesAdded < maxEdges; cj++ {
				a, b := clusters.Clusters[ci], clusters.Clusters[cj]
				samples := crossClusterSampleFactor
				for si := 0; si < len(a.Hashes) && si < samples && edgesAdded < maxEdges; si++ {
					for sj := 0; sj < len(b.Hashes) && sj < samples && edgesAdded < maxEdges; sj++ {
						considerPair(a.Hashes[si], b.Hashes[sj])
					}
				}
			}
		}
	}

	var batch []*memory.Memory
	for hash := range touched {
		m := clusters.byMemories[hash]
		if m == nil {
			continue
		}
		neighbors := p.graph.Neighbors(hash)
		related := make([]string, 0, len(neighbors))
		sims := make([]float64, 0, len(neighbors))
		for _, e := range neighbors {
			other := e.HashA
			if other == hash {
				other = e.HashB
			}
			related = append(related, other)
			sims = append(sims, e.Similarity)
		}
		if m.Metadata == nil {
			m.Metadata = make(map[string]interface{})
		}
		m.Metadata[memory.MetaRelatedMemories] = related
		m.Metadata[memory.MetaRelatedSimilarity] = sims
		m.Metadata[memory.MetaConnectionCount] = p.graph.ConnectionCount(hash)
		batch = append(batch, m)
	}

	if len(batch) > 0 {
		if err := p.store.UpdateMemoriesBatch(ctx, batch); err != nil {
			return PhaseResult{}, err
		}
	}

	return PhaseResult{Ran: true, EdgesAdded: edgesAdded}, nil
}
