package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

// DefaultCallTimeout bounds each embedding or store call made by a BatchProcessor.
const DefaultCallTimeout = 30 * time.Second

// BatchProcessor embeds batches of documents and writes them to a vector store.
type BatchProcessor struct {
	store          storage.VectorStore
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	callTimeout    time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding or store call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(store storage.VectorStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		store:          store,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		callTimeout:    DefaultCallTimeout,
	}
}

// WithCallTimeout returns the processor with a different per-call timeout.
func (bp *BatchProcessor) WithCallTimeout(timeout time.Duration) *BatchProcessor {
	if timeout > 0 {
		bp.callTimeout = timeout
	}
	return bp
}

// Reset clears the vector collection within the per-call timeout.
func (bp *BatchProcessor) Reset(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, bp.callTimeout)
	defer cancel()
	if err := bp.store.Reset(callCtx); err != nil {
		return storage.NewBackendError("reset", err)
	}
	return nil
}

// Process embeds docs and adds them to the store. Vectors are normalized
// so cosine distance is well defined. Failures are *storage.BackendError.
func (bp *BatchProcessor) Process(ctx context.Context, docs []core.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Content
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, bp.callTimeout)
		defer cancel()
		var err error
		embeddings, err = bp.embedder.EmbedTexts(callCtx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return storage.NewBackendError("embed",
			fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err))
	}

	if len(embeddings) != len(docs) {
		return storage.NewBackendError("embed",
			fmt.Errorf("embedding count mismatch: expected %d, got %d", len(docs), len(embeddings)))
	}

	entries := make([]storage.VectorEntry, len(docs))
	for i := range docs {
		entries[i] = storage.EntryFromDocument(docs[i], NormalizeVector(embeddings[i]))
	}

	err = RetryWithBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, bp.callTimeout)
		defer cancel()
		return bp.store.Add(callCtx, entries...)
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return storage.NewBackendError("add", fmt.Errorf("failed to store vectors: %w", err))
	}
	return nil
}
