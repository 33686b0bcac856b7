package localstore

import (
	"encoding/binary"
	"math"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

// encodeVector packs a float32 embedding into a little-endian BLOB. No
// sqlite vector extension is present anywhere in the example pack, so the
// embedding lives as a plain BLOB column and search is a brute-force scan.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, merrors.Storage(nil, "corrupt embedding blob: length %d not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

// cosineSimilarity accumulates dot product and norms in one plain loop for
// brute-force KNN over BLOB-stored vectors, returning the raw cosine
// similarity in [-1, 1] (0 for mismatched lengths or a zero vector).
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if n != len(b) || n == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance converts similarity into the [0, 2] cosine distance range.
func cosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

// similarityFromDistance is the score formula after the L2-to-cosine
// migration: s = 1 - d/2.
func similarityFromDistance(d float64) float64 {
	return 1 - d/2
}
