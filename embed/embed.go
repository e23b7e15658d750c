// Package embed converts text into unit-length float32 vectors for ringvec.
//
// # Implementations
//
//   - [Hash]: deterministic local feature hashing, no network, no model files
//   - [OpenAI]: OpenAI embeddings API (or any OpenAI-compatible provider)
//
// Both return L2-normalized vectors, so they can feed a store configured with
// distance.MetricDot as well as distance.MetricCosine.
//
// # Quick Start
//
//	e := embed.NewHash(384)
//	vec, err := e.Embed(ctx, "connection refused from 10.0.0.7")
//
//	vecs, err := e.EmbedBatch(ctx, []string{"disk full", "disk almost full"})
package embed

import (
	"context"
	"errors"

	"github.com/hupe1980/ringvec/distance"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts, in input order.
	// Implementations may split large batches into smaller calls
	// transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")
)

// normalize L2-normalizes v in place. Zero vectors are left unchanged.
func normalize(v []float32) []float32 {
	distance.NormalizeL2InPlace(v)
	return v
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
