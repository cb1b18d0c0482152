package search

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/fusion"
	"github.com/poiesic/hybridrag/lexical"
	"github.com/poiesic/hybridrag/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds each vector search, embedding included.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of a search. VectorErr is set when the vector side
// failed and Hits were ranked without it.
type Result struct {
	Mode      core.SearchMode
	Hits      []core.Hit
	VectorErr error
}

// Degraded reports whether vector evidence was unavailable.
func (r Result) Degraded() bool {
	return r.VectorErr != nil
}

// Searcher answers queries against the current lexical index and the vector store.
type Searcher struct {
	index    atomic.Pointer[lexical.Index]
	store    storage.VectorStore
	embedder ai.Embedder
	timeout  time.Duration
	monitor  SearchMonitor
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithTimeout bounds every vector search. Non-positive values keep DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Searcher) error {
		if timeout > 0 {
			s.timeout = timeout
		}
		return nil
	}
}

// WithMonitor installs a SearchMonitor. nil restores the no-op monitor.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// WithIndex sets the initial lexical index.
func WithIndex(index *lexical.Index) Option {
	return func(s *Searcher) error {
		s.index.Store(index)
		return nil
	}
}

// NewSearcher creates a new searcher. It starts with an empty lexical index
// unless WithIndex is given.
func NewSearcher(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		timeout:  DefaultTimeout,
		monitor:  &noopMonitor{},
		logger:   slog.Default().With("component", "searcher"),
	}
	s.index.Store(lexical.Build(nil))

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetIndex swaps in a new lexical index. Searches already running keep the
// index they started with.
func (s *Searcher) SetIndex(index *lexical.Index) {
	if index == nil {
		index = lexical.Build(nil)
	}
	s.index.Store(index)
}

// Index returns the current lexical index.
func (s *Searcher) Index() *lexical.Index {
	return s.index.Load()
}

// Search dispatches query to the retriever selected by mode. Unknown modes
// run hybrid. Weights only apply to hybrid searches.
func (s *Searcher) Search(ctx context.Context, query string, mode core.SearchMode, k int, w fusion.Weights) Result {
	start := time.Now()
	s.monitor.Start(mode, query)

	index := s.index.Load()
	var result Result
	switch mode {
	case core.SearchModeLexical:
		result = Result{Mode: mode, Hits: s.lexical(index, query, k)}
	case core.SearchModeVector:
		hits, err := s.vector(ctx, index, query, k)
		if err != nil {
			s.logger.Warn("vector search degraded", "err", err)
			hits = []core.Hit{}
		}
		result = Result{Mode: mode, Hits: hits, VectorErr: err}
	default:
		result = s.hybrid(ctx, index, query, k, w)
	}

	s.monitor.Finish(result.Mode, result.Hits, time.Since(start))
	return result
}

// Lexical returns up to k BM25 hits. It never fails.
func (s *Searcher) Lexical(query string, k int) []core.Hit {
	return s.lexical(s.index.Load(), query, k)
}

// Vector returns up to k hits by cosine distance. Any failure, including a
// timeout, is a *storage.BackendError.
func (s *Searcher) Vector(ctx context.Context, query string, k int) ([]core.Hit, error) {
	return s.vector(ctx, s.index.Load(), query, k)
}

// Hybrid fuses lexical and vector rankings with weights w.
func (s *Searcher) Hybrid(ctx context.Context, query string, k int, w fusion.Weights) Result {
	return s.hybrid(ctx, s.index.Load(), query, k, w)
}

func (s *Searcher) lexical(index *lexical.Index, query string, k int) []core.Hit {
	hits := index.Search(query, k)
	if hits == nil {
		hits = []core.Hit{}
	}
	s.monitor.AfterLexicalSearch(hits)
	return hits
}

func (s *Searcher) vector(ctx context.Context, index *lexical.Index, query string, k int) ([]core.Hit, error) {
	if k <= 0 {
		return []core.Hit{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		err = storage.NewBackendError("embed", err)
		s.monitor.AfterVectorSearch(nil, err)
		return nil, err
	}

	matches, err := s.store.Query(ctx, embedding, k)
	if err != nil {
		err = storage.NewBackendError("query", err)
		s.monitor.AfterVectorSearch(nil, err)
		return nil, err
	}

	hits := make([]core.Hit, 0, len(matches))
	for _, match := range matches {
		doc, ok := index.Document(match.Entry.ID)
		if !ok {
			s.logger.Debug("dropping vector match unknown to document table", "id", match.Entry.ID)
			continue
		}
		if match.Entry.Document() != doc {
			// Same id, different corpus.
			s.logger.Debug("dropping stale vector match", "id", match.Entry.ID)
			continue
		}
		hits = append(hits, core.Hit{
			Document: doc,
			Score:    match.Distance,
			Kind:     core.ScoreDistance,
		})
	}
	s.monitor.AfterVectorSearch(hits, nil)
	return hits, nil
}

func (s *Searcher) hybrid(ctx context.Context, index *lexical.Index, query string, k int, w fusion.Weights) Result {
	result := Result{Mode: core.SearchModeHybrid, Hits: []core.Hit{}}
	if k <= 0 {
		return result
	}

	var (
		g          errgroup.Group
		lexHits    []core.Hit
		vectorHits []core.Hit
		vectorErr  error
	)
	g.Go(func() error {
		lexHits = s.lexical(index, query, 2*k)
		return nil
	})
	g.Go(func() error {
		vectorHits, vectorErr = s.vector(ctx, index, query, 2*k)
		return nil
	})
	_ = g.Wait()

	if vectorErr != nil {
		s.logger.Warn("hybrid search continuing with lexical evidence only", "err", vectorErr)
		vectorHits = nil
		result.VectorErr = vectorErr
	}

	result.Hits = fusion.Fuse(lexHits, vectorHits, w, k)
	return result
}
