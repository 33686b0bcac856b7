package relationship

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddIsUnorderedAndDeduped(t *testing.T) {
	g := NewGraph()
	g.Add(Edge{HashA: "a", HashB: "b", Similarity: 0.5})
	g.Add(Edge{HashA: "b", HashB: "a", Similarity: 0.9})

	assert.True(t, g.Has("a", "b"))
	assert.True(t, g.Has("b", "a"))
	neighbors := g.Neighbors("a")
	assert.Len(t, neighbors, 1)
	assert.Equal(t, 0.9, neighbors[0].Similarity)
}

func TestConnectionCount(t *testing.T) {
	g := NewGraph()
	g.Add(Edge{HashA: "a", HashB: "b", Similarity: 0.4})
	g.Add(Edge{HashA: "a", HashB: "c", Similarity: 0.6})
	assert.Equal(t, 2, g.ConnectionCount("a"))
	assert.Equal(t, 1, g.ConnectionCount("b"))
}

func TestTraverseRespectsMaxDepth(t *testing.T) {
	g := NewGraph()
	g.Add(Edge{HashA: "a", HashB: "b", Similarity: 0.5})
	g.Add(Edge{HashA: "b", HashB: "c", Similarity: 0.5})
	g.Add(Edge{HashA: "c", HashB: "d", Similarity: 0.5})

	assert.ElementsMatch(t, []string{"b"}, g.Traverse("a", 1))
	assert.ElementsMatch(t, []string{"b", "c"}, g.Traverse("a", 2))
}

func TestNeighborsSortedBySimilarityDescending(t *testing.T) {
	g := NewGraph()
	g.Add(Edge{HashA: "a", HashB: "b", Similarity: 0.3})
	g.Add(Edge{HashA: "a", HashB: "c", Similarity: 0.9})
	neighbors := g.Neighbors("a")
	assert.Equal(t, "c", neighborOther(neighbors[0], "a"))
}

func neighborOther(e Edge, hash string) string {
	if e.HashA == hash {
		return e.HashB
	}
	return e.HashA
}
