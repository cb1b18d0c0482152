// Package hashing provides the default embedding function: a deterministic
// bag-of-words projection that needs no model download or network access.
//
// Every lower-cased whitespace token adds 1 to bucket xxhash64(token) mod
// width and the result is scaled to unit length. The hash is fixed and
// seedless, so the same text yields the same vector in every process.
package hashing

import (
	"context"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/poiesic/hybridrag/ai"
)

const (
	// DefaultWidth is the reference embedding width.
	DefaultWidth = 384

	// Name identifies the hash and bucketing scheme. Vectors produced under a
	// different name must not be mixed with these.
	Name = "xxhash64-bow-v1"
)

// Embedder implements ai.Embedder with feature hashing.
type Embedder struct {
	width int
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates a hashing embedder. Non-positive widths fall back to DefaultWidth.
func NewEmbedder(width int) *Embedder {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Embedder{width: width}
}

// Name returns the versioned name of the embedding scheme.
func (e *Embedder) Name() string {
	return Name
}

// Width returns the embedding dimensionality.
func (e *Embedder) Width() int {
	return e.width
}

// Embed computes the embedding of text. Text without tokens maps to the zero vector.
func (e *Embedder) Embed(text string) []float32 {
	counts := make([]float64, e.width)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		counts[xxhash.Sum64String(tok)%uint64(e.width)]++
	}

	var sumSquares float64
	for _, c := range counts {
		sumSquares += c * c
	}

	vector := make([]float32, e.width)
	if sumSquares == 0 {
		return vector
	}
	magnitude := math.Sqrt(sumSquares)
	for i, c := range counts {
		vector[i] = float32(c / magnitude)
	}
	return vector
}

// EmbedText implements ai.Embedder. It only fails when ctx is already done.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.Embed(text), nil
}

// EmbedTexts implements ai.Embedder.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.Embed(text)
	}
	return vectors, nil
}
