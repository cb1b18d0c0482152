package ai

import (
	"context"

	"github.com/poiesic/hybridrag/core"
)

type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type AnswerGenerator interface {
	// GenerateAnswer produces free-form text answering query from the ranked
	// hits. externalContext is optional caller-supplied material (for example
	// research findings) and may be empty. The returned text is never parsed
	// by the engine.
	GenerateAnswer(ctx context.Context, query string, hits []core.Hit, externalContext string) (string, error)
}

type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer generation service.
	// The returned AnswerGenerator is safe for concurrent use.
	Generator() AnswerGenerator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

// NoContextAnswer is returned by generators when there is nothing to ground an answer on.
const NoContextAnswer = "No relevant information found to answer your question."
