package consolidation

import (
	"context"
	"math"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
)

// embeddingSource is implemented by backends that can return embeddings in
// bulk (currently localstore.Store.GetAllWithEmbeddings). Backends that
// don't implement it cause phase 2 to skip with a warning rather than fail,
// matching the documented drift-handling behavior.
type embeddingSource interface {
	GetAllWithEmbeddings(ctx context.Context, timeStart, timeEnd float64) ([]*memory.Memory, error)
}

// cluster is one DBSCAN-discovered group of content hashes.
type cluster struct {
	Hashes []string
}

// clusterOutput is phase 2's result, consumed by phases 3 and 4.
type clusterOutput struct {
	byMemories map[string]*memory.Memory // content_hash -> memory, for clustered+noise alike
	Clusters   []cluster
	Noise      []string
}

// runCluster is phase 2: fetch embeddings for the horizon and group them
// with a DBSCAN-like density clustering over cosine distance.
func (p *Pipeline) runCluster(ctx context.Context, runID string, horizon Horizon) (clusterOutput, PhaseResult, error) {
	src, ok := p.store.(embeddingSource)
	if !ok {
		p.log.Warn("backend does not support embedding bulk reads, skipping clustering", "run_id", runID)
		return clusterOutput{}, PhaseResult{Ran: false, Skipped: true, SkipNote: "backend does not return embeddings"}, nil
	}

	memories, err := src.GetAllWithEmbeddings(ctx, horizon.startSeconds(), horizon.endSeconds())
	if err != nil {
		return clusterOutput{}, PhaseResult{}, err
	}

	var withEmbeddings []*memory.Memory
	for _, m := range memories {
		if len(m.Embedding) > 0 {
			withEmbeddings = append(withEmbeddings, m)
		}
	}

	const minCorpusSize = 50
	if len(withEmbeddings) < minCorpusSize {
		p.log.Warn("corpus too small for clustering, skipping", "run_id", runID, "count", len(withEmbeddings))
		return clusterOutput{}, PhaseResult{Ran: false, Skipped: true, SkipNote: "corpus smaller than 50 memories"}, nil
	}

	out := clusterOutput{byMemories: make(map[string]*memory.Memory, len(withEmbeddings))}
	for _, m := range withEmbeddings {
		out.byMemories[m.ContentHash] = m
	}

	eps := p.cfg.ClusterEps
	if eps == 0 {
		eps = 0.3
	}
	minSamples := p.cfg.ClusterMinSamples
	if minSamples == 0 {
		minSamples = 5
	}

	labels := dbscan(withEmbeddings, eps, minSamples)
	clusterIndex := make(map[int]*cluster)
	for i, m := range withEmbeddings {
		label := labels[i]
		if label == -1 {
			out.Noise = append(out.Noise, m.ContentHash)
			continue
		}
		c, ok := clusterIndex[label]
		if !ok {
			c = &cluster{}
			clusterIndex[label] = c
		}
		c.Hashes = append(c.Hashes, m.ContentHash)
	}
	for _, c := range clusterIndex {
		out.Clusters = append(out.Clusters, *c)
	}

	return out, PhaseResult{Ran: true, Clusters: len(out.Clusters), NoisePoints: len(out.Noise)}, nil
}

// dbscan is a straightforward O(n^2) density clustering over cosine
// distance, adequate for the per-run batch sizes consolidation operates on.
// Returns, for each input index, its cluster label (0-based) or -1 for noise.
func dbscan(items []*memory.Memory, eps float64, minSamples int) []int {
	n := len(items)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -2 // unvisited
	}
	visited := make([]bool, n)
	nextLabel := 0

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if cosineDistance(items[i].Embedding, items[j].Embedding) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		neigh := neighbors(i)
		if len(neigh)+1 < minSamples {
			labels[i] = -1
			continue
		}

		label := nextLabel
		nextLabel++
		labels[i] = label

		queue := append([]int{}, neigh...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if !visited[j] {
				visited[j] = true
				jNeigh := neighbors(j)
				if len(jNeigh)+1 >= minSamples {
					queue = append(queue, jNeigh...)
				}
			}
			if labels[j] < 0 {
				labels[j] = label
			}
		}
	}
	return labels
}

func cosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
