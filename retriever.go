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


package hybridrag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/ai/hashing"
	"github.com/poiesic/hybridrag/ai/openai"
	"github.com/poiesic/hybridrag/chunker"
	"github.com/poiesic/hybridrag/config"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/fusion"
	"github.com/poiesic/hybridrag/ingestion"
	"github.com/poiesic/hybridrag/metrics"
	"github.com/poiesic/hybridrag/persist"
	"github.com/poiesic/hybridrag/reembed"
	"github.com/poiesic/hybridrag/search"
	"github.com/poiesic/hybridrag/storage"
	"github.com/poiesic/hybridrag/storage/badger"
)

var (
	// ErrInvalidTopK is returned for searches asking for fewer than one hit.
	ErrInvalidTopK = errors.New("top_k must be a positive integer")

	// ErrGeneratorUnavailable is returned by Ask when no answer generator is configured.
	ErrGeneratorUnavailable = errors.New("answer generator not configured")
)

// Retriever is the single entry point for ingesting a corpus and querying it.
// Ingestion is serialized; searches may run concurrently with each other
// and with an ingestion in progress.
type Retriever struct {
	cfg       config.Config
	store     storage.VectorStore
	ownStore  bool
	embedder  ai.Embedder
	generator ai.AnswerGenerator
	provider  ai.Provider
	snapshots *persist.Manager
	pipeline  *ingestion.Pipeline
	searcher  *search.Searcher
	mu        sync.Mutex
	logger    *slog.Logger
}

// Option configures a Retriever.
type Option func(*retrieverOptions)

type retrieverOptions struct {
	embedder  ai.Embedder
	generator ai.AnswerGenerator
	store     storage.VectorStore
	logger    *slog.Logger
	monitor   search.SearchMonitor
}

// WithEmbedder replaces the configured embedding function.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *retrieverOptions) {
		o.embedder = embedder
	}
}

// WithGenerator sets the answer generator used by Ask.
func WithGenerator(generator ai.AnswerGenerator) Option {
	return func(o *retrieverOptions) {
		o.generator = generator
	}
}

// WithVectorStore uses store instead of opening one under the data
// directory. The caller keeps ownership and must close it.
func WithVectorStore(store storage.VectorStore) Option {
	return func(o *retrieverOptions) {
		o.store = store
	}
}

// WithLogger sets the logger passed to every component. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *retrieverOptions) {
		o.logger = logger
	}
}

// WithMonitor replaces the Prometheus search monitor.
func WithMonitor(monitor search.SearchMonitor) Option {
	return func(o *retrieverOptions) {
		o.monitor = monitor
	}
}

// NewRetriever opens the vector store and snapshot under cfg.Dir and loads
// the last saved corpus. A missing or unreadable snapshot is logged and the
// retriever starts empty. A nil cfg means config.Default().
func NewRetriever(cfg *config.Config, opts ...Option) (*Retriever, error) {
	c := config.Default()
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	options := &retrieverOptions{
		logger:  slog.Default(),
		monitor: metrics.NewMonitor(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	r := &Retriever{
		cfg:       c,
		embedder:  options.embedder,
		generator: options.generator,
		store:     options.store,
		logger:    options.logger.With("component", "retriever"),
	}

	if err := r.setupAI(); err != nil {
		return nil, err
	}

	if r.store == nil {
		store, err := badger.OpenVectorStore(c.VectorDir(), c.Collection)
		if err != nil {
			r.closeProvider()
			return nil, err
		}
		r.store = store
		r.ownStore = true
	}

	snapshots, err := persist.NewManager(c.SnapshotDir())
	if err != nil {
		r.Close()
		return nil, err
	}
	r.snapshots = snapshots

	pipelineOpts := []ingestion.Option{
		ingestion.WithBatchSize(c.Ingestion.BatchSize),
		ingestion.WithMaxRetries(c.Ingestion.MaxRetries),
		ingestion.WithRetryDelay(c.RetryDelay()),
		ingestion.WithCallTimeout(c.CallTimeout()),
		ingestion.WithLogger(options.logger.With("component", "ingestion")),
	}
	if c.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(c.Ingestion.PoolSize))
	}
	r.pipeline, err = ingestion.NewPipeline(r.store, r.embedder, pipelineOpts...)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.searcher, err = search.NewSearcher(r.store, r.embedder,
		search.WithTimeout(c.SearchTimeout()),
		search.WithMonitor(options.monitor),
		search.WithLogger(options.logger.With("component", "searcher")))
	if err != nil {
		r.Close()
		return nil, err
	}

	r.load()
	return r, nil
}

// setupAI resolves the embedder and generator that were not given as options.
func (r *Retriever) setupAI() error {
	needsProvider := (r.embedder == nil && r.cfg.Embedding.Provider == config.EmbeddingOpenAI) ||
		(r.generator == nil && r.cfg.AI.Enabled)
	if needsProvider {
		provider, err := openai.NewProvider(r.cfg.AIConfig())
		if err != nil {
			return fmt.Errorf("failed to create AI provider: %w", err)
		}
		r.provider = provider
	}

	if r.embedder == nil {
		if r.cfg.Embedding.Provider == config.EmbeddingOpenAI {
			r.embedder = r.provider.Embedder()
		} else {
			r.embedder = hashing.NewEmbedder(r.cfg.Embedding.Width)
		}
	}
	if r.generator == nil && r.cfg.AI.Enabled {
		r.generator = r.provider.Generator()
	}
	return nil
}

func (r *Retriever) load() {
	snapshot, err := r.snapshots.Load()
	switch {
	case errors.Is(err, persist.ErrNoSnapshot):
		r.logger.Info("no snapshot found, starting with an empty corpus", "dir", r.snapshots.Dir())
		return
	case err != nil:
		r.logger.Warn("failed to load snapshot, starting with an empty corpus", "dir", r.snapshots.Dir(), "err", err)
		return
	}

	r.searcher.SetIndex(snapshot.Index)
	metrics.SetCorpusDocuments(snapshot.Index.Len())
	r.logger.Info("snapshot loaded", "generation", snapshot.Generation, "documents", snapshot.Index.Len())
}

// Ingest replaces the live corpus with docs: the vector collection is
// cleared and rebuilt, the lexical index rebuilt and the snapshot saved.
// A malformed document rejects the whole call and leaves the corpus as it
// was. Vector failures do not fail the call; they are in the report.
func (r *Retriever) Ingest(ctx context.Context, docs []core.Document) (*ingestion.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.pipeline.Ingest(ctx, docs)
	if err != nil {
		return nil, err
	}

	r.searcher.SetIndex(result.Index)
	metrics.RecordIngest(result.Report.Documents, result.Report.FailedBatches)
	for _, batchErr := range result.Report.Errors {
		metrics.RecordBackendFailure(batchErr)
	}

	if err := r.snapshots.Save(result.Documents, result.Index); err != nil {
		return &result.Report, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return &result.Report, nil
}

// IngestText chunks text with the configured window and ingests the chunks.
func (r *Retriever) IngestText(ctx context.Context, fileName, text string) (*ingestion.Report, error) {
	docs, err := chunker.Documents(fileName, text, r.cfg.Chunking.Size, r.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	return r.Ingest(ctx, docs)
}

// IngestFile ingests a file. Files ending in .jsonl hold one record per
// line; anything else is read as plain text and chunked.
func (r *Retriever) IngestFile(ctx context.Context, path string) (*ingestion.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		docs, err := ingestion.NewRecordAdapter().ReadJSONLines(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return r.Ingest(ctx, docs)
	}
	return r.IngestText(ctx, path, string(data))
}

// Search ranks the corpus for query with mode. Hybrid searches use the
// configured weights. Vector backend failures degrade the result instead
// of failing it.
func (r *Retriever) Search(ctx context.Context, query string, mode core.SearchMode, topK int) ([]core.Hit, error) {
	result, err := r.SearchDetailed(ctx, query, mode, topK, r.weights())
	if err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// SearchWeighted runs a hybrid search with explicit weights.
func (r *Retriever) SearchWeighted(ctx context.Context, query string, topK int, w fusion.Weights) ([]core.Hit, error) {
	result, err := r.SearchDetailed(ctx, query, core.SearchModeHybrid, topK, w)
	if err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// SearchDetailed is Search returning the full result, including the vector
// failure when the result is degraded.
func (r *Retriever) SearchDetailed(ctx context.Context, query string, mode core.SearchMode, topK int, w fusion.Weights) (search.Result, error) {
	if topK <= 0 {
		return search.Result{}, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	return r.searcher.Search(ctx, query, mode, topK, w), nil
}

func (r *Retriever) weights() fusion.Weights {
	return fusion.Weights{
		Lexical: r.cfg.Search.LexicalWeight,
		Vector:  r.cfg.Search.VectorWeight,
	}
}

// ReferenceContext runs a hybrid search for every query and returns the
// concatenated hits with repeated content removed.
func (r *Retriever) ReferenceContext(ctx context.Context, queries []string, topK int) ([]core.Hit, error) {
	var all []core.Hit
	for _, query := range queries {
		if strings.TrimSpace(query) == "" {
			continue
		}
		hits, err := r.Search(ctx, query, core.SearchModeHybrid, topK)
		if err != nil {
			return nil, err
		}
		all = append(all, hits...)
	}
	return fusion.DedupeByContent(all), nil
}

// Answer is a generated answer with the evidence it was generated from.
type Answer struct {
	Question  string
	Text      string
	Hits      []core.Hit
	VectorErr error
}

// Ask retrieves evidence for question and passes it, with externalContext,
// to the answer generator.
func (r *Retriever) Ask(ctx context.Context, question string, mode core.SearchMode, topK int, externalContext string) (*Answer, error) {
	if r.generator == nil {
		return nil, ErrGeneratorUnavailable
	}

	result, err := r.SearchDetailed(ctx, question, mode, topK, r.weights())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.AnswerTimeout())
	defer cancel()

	text, err := r.generator.GenerateAnswer(ctx, question, result.Hits, externalContext)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	return &Answer{
		Question:  question,
		Text:      text,
		Hits:      result.Hits,
		VectorErr: result.VectorErr,
	}, nil
}

// Stats describes the live corpus.
type Stats struct {
	DocumentCount   int
	VectorCount     int
	StorageLocation string
	// VectorErr is set when the vector count could not be read.
	VectorErr error
}

// Stats reports the corpus size. It does not fail: a vector backend error
// is returned in Stats.VectorErr with a zero VectorCount.
func (r *Retriever) Stats(ctx context.Context) Stats {
	stats := Stats{
		DocumentCount:   r.searcher.Index().Len(),
		StorageLocation: r.store.Location(),
	}
	countCtx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout())
	defer cancel()
	count, err := r.store.Count(countCtx)
	if err != nil {
		err = storage.NewBackendError("count", err)
		r.logger.Warn("failed to count vectors", "err", err)
		metrics.RecordBackendFailure(err)
		stats.VectorErr = err
		return stats
	}
	stats.VectorCount = count
	return stats
}

// Documents returns the live document table.
func (r *Retriever) Documents() []core.Document {
	return slices.Clone(r.searcher.Index().Documents())
}

// Bootstrap ingests the file at path unless a corpus is already loaded.
// Transient failures, including a degraded vector build, are retried with
// backoff; when attempts run out the retriever continues with whatever was
// installed and Bootstrap returns nil. A missing or malformed file is an
// error.
func (r *Retriever) Bootstrap(ctx context.Context, path string) error {
	if n := r.searcher.Index().Len(); n > 0 {
		r.logger.Info("corpus already loaded, skipping bootstrap", "documents", n)
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("bootstrap corpus: %w", err)
	}

	err := reembed.RetryWithBackoff(ctx, func() error {
		report, err := r.IngestFile(ctx, path)
		if err != nil {
			if isInputError(err) {
				return reembed.Permanent(err)
			}
			return err
		}
		return report.Err()
	}, r.cfg.Bootstrap.MaxAttempts, r.cfg.BootstrapDelay())

	switch {
	case err == nil:
		r.logger.Info("bootstrap complete", "path", path, "documents", r.searcher.Index().Len())
		return nil
	case isInputError(err), ctx.Err() != nil:
		return fmt.Errorf("bootstrap corpus: %w", err)
	default:
		r.logger.Warn("bootstrap gave up, continuing degraded",
			"path", path,
			"attempts", r.cfg.Bootstrap.MaxAttempts,
			"documents", r.searcher.Index().Len(),
			"err", err)
		return nil
	}
}

func isInputError(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, core.ErrInvalidDocument) ||
		errors.Is(err, ingestion.ErrInvalidRecord) ||
		errors.Is(err, chunker.ErrInvalidChunkConfig)
}

// Reembed rebuilds the vector collection from the live document table,
// writing progress to w. It repairs a degraded ingest and is needed after
// switching embedders.
func (r *Retriever) Reembed(ctx context.Context, w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := &reembed.Config{
		BatchSize:      r.cfg.Ingestion.BatchSize,
		ReportInterval: 100,
		MaxRetries:     r.cfg.Ingestion.MaxRetries,
		RetryDelay:     r.cfg.RetryDelay(),
		CallTimeout:    r.cfg.CallTimeout(),
	}
	err := reembed.NewReembedder(r.store, r.embedder, cfg, w).Run(ctx, r.searcher.Index().Documents())
	if err != nil {
		metrics.RecordBackendFailure(err)
	}
	return err
}

// Close releases the worker pool, the vector store (when opened by the
// retriever) and the AI provider.
func (r *Retriever) Close() error {
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	r.closeProvider()

	if r.ownStore && r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("error closing vector store", "err", err)
			return err
		}
	}
	return nil
}

func (r *Retriever) closeProvider() {
	if r.provider == nil {
		return
	}
	if err := r.provider.Close(); err != nil {
		r.logger.Error("error closing AI provider", "err", err)
	}
}
