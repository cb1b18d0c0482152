package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/lexical"
	"github.com/poiesic/hybridrag/reembed"
	"github.com/poiesic/hybridrag/storage"
)

const (
	// DefaultBatchSize is the number of documents embedded per batch.
	DefaultBatchSize = 100
	// DefaultMaxRetries is the number of attempts per batch call.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base backoff between attempts.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Pipeline replaces the corpus: it validates documents, builds the lexical
// index and rebuilds the vector collection.
type Pipeline struct {
	store       storage.VectorStore
	embedder    ai.Embedder
	pool        *ants.Pool
	batchSize   int
	maxRetries  int
	retryDelay  time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
}

// Report summarizes the vector side of an ingestion.
type Report struct {
	Documents     int
	Batches       int
	FailedBatches int
	VectorsAdded  int
	Errors        []error
}

// Degraded reports whether some documents are missing from the vector collection.
func (r Report) Degraded() bool {
	return r.FailedBatches > 0
}

// Err joins the batch errors, or returns nil when every batch succeeded.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// Result is a successfully ingested corpus.
type Result struct {
	Documents []core.Document
	Index     *lexical.Index
	Report    Report
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent batch processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many documents are embedded together.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = DefaultBatchSize
		}
		p.batchSize = size
		return nil
	}
}

// WithMaxRetries sets the attempts per embedding or store call.
func WithMaxRetries(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.maxRetries = n
		return nil
	}
}

// WithRetryDelay sets the base backoff delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.retryDelay = d
		return nil
	}
}

// WithCallTimeout bounds each embedding or store call.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.callTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		pool:        pool,
		batchSize:   DefaultBatchSize,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		callTimeout: reembed.DefaultCallTimeout,
		logger:      slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest validates docs as a whole, builds the lexical index and rebuilds
// the vector collection. A validation failure returns an error and changes
// nothing. Vector failures are reported in Result.Report, never as an error.
func (p *Pipeline) Ingest(ctx context.Context, docs []core.Document) (*Result, error) {
	corpus := make([]core.Document, len(docs))
	copy(corpus, docs)
	for i := range corpus {
		core.NormalizeDocument(&corpus[i])
	}
	if err := core.ValidateCorpus(corpus); err != nil {
		return nil, err
	}

	index := lexical.Build(corpus)
	iterator := reembed.NewDocumentIterator(corpus, p.batchSize)
	report := Report{
		Documents: len(corpus),
		Batches:   iterator.BatchCount(),
	}

	processor := reembed.NewBatchProcessor(p.store, p.embedder, p.maxRetries, p.retryDelay).
		WithCallTimeout(p.callTimeout)

	if err := processor.Reset(ctx); err != nil {
		// Without a clean collection new vectors would mix with stale ones.
		p.logger.Warn("vector collection reset failed, skipping vector build", "err", err)
		report.FailedBatches = report.Batches
		report.Errors = append(report.Errors, err)
		return &Result{Documents: corpus, Index: index, Report: report}, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	fail := func(index int, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.FailedBatches++
		report.Errors = append(report.Errors, &BatchError{Index: index, Err: err})
	}

	_ = iterator.ForEach(context.WithoutCancel(ctx), func(index int, batch []core.Document) error {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := processor.Process(ctx, batch); err != nil {
				p.logger.Warn("vector batch failed", "batch", index, "size", len(batch), "err", err)
				fail(index, err)
				return
			}
			mu.Lock()
			report.VectorsAdded += len(batch)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			p.logger.Warn("could not schedule vector batch", "batch", index, "err", err)
			fail(index, storage.NewBackendError("schedule", err))
		}
		return nil
	})
	wg.Wait()

	if report.Degraded() {
		p.logger.Warn("ingestion finished degraded",
			"documents", report.Documents,
			"failedBatches", report.FailedBatches,
			"batches", report.Batches)
	} else {
		p.logger.Info("ingestion finished", "documents", report.Documents, "batches", report.Batches)
	}

	return &Result{Documents: corpus, Index: index, Report: report}, nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
