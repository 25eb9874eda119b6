// Package ai wraps the sentence-embedding backends used for semantic
// question matching. The Gemini provider is the production path; the local
// hashed provider keeps development and tests independent of the API.
package ai

import (
	"context"
	"errors"
	"math"
)

// ErrModelUnavailable indicates the embedding backend is down or saturated.
// Callers treat it as retryable and fall back to lexical matching.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Embedder maps normalized text to a fixed-length dense vector. The same
// input always yields the same vector for a given Version. Implementations
// are safe for concurrent use after construction.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Version() string
}

// l2Normalize scales v to unit length in place so dot product equals cosine
// similarity. Zero vectors are left untouched.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
