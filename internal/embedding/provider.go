// Package embedding provides the Provider abstraction used to turn content
// into vectors, plus a redis-backed caching decorator that cmd/mnemod puts
// in front of the remote provider.
package embedding

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Provider generates embeddings for content. Implementations must return
// unit-normalized vectors of a fixed Dimensions().
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Dedup wraps a Provider so concurrent identical-text embedding requests
// collapse into a single call via singleflight.
type Dedup struct {
	inner Provider
	group singleflight.Group
}

// NewDedup wraps inner with single-flight de-duplication for Embed calls.
func NewDedup(inner Provider) *Dedup {
	return &Dedup{inner: inner}
}

func (d *Dedup) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err, _ := d.group.Do(text, func() (interface{}, error) {
		return d.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (d *Dedup) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return d.inner.EmbedBatch(ctx, texts)
}

func (d *Dedup) Dimensions() int { return d.inner.Dimensions() }
