package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// LocalProvider is a deterministic, dependency-free stand-in for a small
// quantized local embedding model: it projects content into a fixed-width
// vector by hashing overlapping shingles into buckets, then unit-normalizes.
// No ONNX/embedding-model runtime ships in the example pack this module was
// built from, so this is the one intentionally stdlib-only provider; real
// deployments are expected to swap in a binding once one is available.
type LocalProvider struct {
	dims int
}

// NewLocalProvider returns a LocalProvider producing vectors of width dims.
func NewLocalProvider(dims int) *LocalProvider {
	if dims <= 0 {
		dims = 384
	}
	return &LocalProvider{dims: dims}
}

func (p *LocalProvider) Dimensions() int { return p.dims }

func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return hashProject(text, p.dims), nil
}

func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// hashProject shingles text into 3-grams, hashes each into a bucket of a
// dims-wide accumulator, and L2-normalizes the result.
func hashProject(text string, dims int) []float32 {
	vec := make([]float64, dims)
	runes := []rune(text)
	const shingle = 3
	if len(runes) < shingle {
		runes = append(runes, make([]rune, shingle-len(runes))...)
	}
	for i := 0; i+shingle <= len(runes); i++ {
		gram := string(runes[i : i+shingle])
		sum := sha256.Sum256([]byte(gram))
		bucket := binary.BigEndian.Uint64(sum[:8]) % uint64(dims)
		sign := 1.0
		if sum[8]&1 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}
	return normalize(vec)
}

func normalize(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
