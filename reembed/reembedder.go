// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// CallTimeout bounds each reset, embedding and store call.
	// Zero means DefaultCallTimeout.
	CallTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		CallTimeout:    DefaultCallTimeout,
	}
}

// Reembedder rebuilds the vector collection from the document table.
// It is the repair path after a degraded ingest and the migration path
// when the embedding function changes.
type Reembedder struct {
	store     storage.VectorStore
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store storage.VectorStore, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:     store,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(store, embedder, config.MaxRetries, config.RetryDelay).
			WithCallTimeout(config.CallTimeout),
	}
}

// Run clears the collection and re-embeds every document in docs.
// Progress is reported to the configured writer. The first failing batch
// stops the run.
func (r *Reembedder) Run(ctx context.Context, docs []core.Document) error {
	if err := r.processor.Reset(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}

	total := len(docs)
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in snapshot (0 documents)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n",
		total, r.config.BatchSize)

	iterator := NewDocumentIterator(docs, r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, total, iterator.BatchCount(), r.config.ReportInterval)
	tracker.Start()

	err := iterator.ForEach(ctx, func(index int, batch []core.Document) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("%w: batch %d after %d documents: %w", ErrBatchFailed, index, tracker.Processed(), err)
		}
		tracker.BatchDone(len(batch))
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v (%.1f documents/sec)\n",
		total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	return nil
}
