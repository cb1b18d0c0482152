package hybridrag

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/hybridrag/ai/mock"
	"github.com/poiesic/hybridrag/config"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/fusion"
	"github.com/poiesic/hybridrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var twoDocs = []core.Document{
	{ID: 1, Type: core.DocumentTypeBookChunk, Title: "Chunk 1", Content: "hemoglobin low iron deficiency", Source: "test"},
	{ID: 2, Type: core.DocumentTypeBookChunk, Title: "Chunk 2", Content: "vitamin d normal range", Source: "test"},
}

// failingStore fails every call.
type failingStore struct{}

var errBackendDown = errors.New("connection refused")

func (failingStore) Reset(context.Context) error { return storage.NewBackendError("reset", errBackendDown) }
func (failingStore) Add(context.Context, ...storage.VectorEntry) error {
	return storage.NewBackendError("add", errBackendDown)
}
func (failingStore) Query(context.Context, []float32, int) ([]storage.VectorMatch, error) {
	return nil, storage.NewBackendError("query", errBackendDown)
}
func (failingStore) Count(context.Context) (int, error) {
	return 0, storage.NewBackendError("count", errBackendDown)
}
func (failingStore) Location() string { return "failing" }
func (failingStore) Close() error     { return nil }

// stuckStore blocks every call until its context is done.
type stuckStore struct{}

func (stuckStore) Reset(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (stuckStore) Add(ctx context.Context, _ ...storage.VectorEntry) error {
	<-ctx.Done()
	return ctx.Err()
}
func (stuckStore) Query(ctx context.Context, _ []float32, _ int) ([]storage.VectorMatch, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (stuckStore) Count(ctx context.Context) (int, error) { <-ctx.Done(); return 0, ctx.Err() }
func (stuckStore) Location() string                       { return "stuck" }
func (stuckStore) Close() error                           { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Chunking.Size = 3
	cfg.Chunking.Overlap = 1
	cfg.Ingestion.MaxRetries = 1
	cfg.Ingestion.RetryDelayMs = 1
	cfg.Bootstrap.MaxAttempts = 2
	cfg.Bootstrap.RetryDelayMs = 1
	return &cfg
}

func openRetriever(t *testing.T, cfg *config.Config, opts ...Option) *Retriever {
	t.Helper()
	r, err := NewRetriever(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func ids(hits []core.Hit) []core.ID {
	out := make([]core.ID, len(hits))
	for i, hit := range hits {
		out[i] = hit.Document.ID
	}
	return out
}

func TestNewRetriever(t *testing.T) {
	t.Run("starts empty", func(t *testing.T) {
		r := openRetriever(t, testConfig(t))

		stats := r.Stats(context.Background())
		assert.Zero(t, stats.DocumentCount)
		assert.Zero(t, stats.VectorCount)
		assert.NoError(t, stats.VectorErr)
		assert.Contains(t, stats.StorageLocation, "medical_knowledge")
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Chunking.Overlap = cfg.Chunking.Size

		r, err := NewRetriever(cfg)
		assert.Error(t, err)
		assert.Nil(t, r)
	})

	t.Run("error with file as data directory", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.MkdirAll(cfg.Dir, 0755))
		require.NoError(t, os.WriteFile(cfg.VectorDir(), []byte("test"), 0644))

		r, err := NewRetriever(cfg)
		assert.Error(t, err)
		assert.Nil(t, r)
	})

	t.Run("corrupt snapshot starts empty", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.MkdirAll(cfg.SnapshotDir(), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(cfg.SnapshotDir(), "CURRENT"), []byte("garbage"), 0644))

		r := openRetriever(t, cfg)
		assert.Zero(t, r.Stats(context.Background()).DocumentCount)
	})
}

func TestRetriever_IngestAndSearch(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))

	report, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)
	assert.False(t, report.Degraded())

	stats := r.Stats(ctx)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 2, stats.VectorCount)

	hits, err := r.Search(ctx, "hemoglobin", core.SearchModeLexical, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(1), hits[0].Document.ID)
	assert.Equal(t, core.ScoreRelevance, hits[0].Kind)

	hits, err = r.Search(ctx, "hemoglobin iron", core.SearchModeHybrid, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, core.ID(1), hits[0].Document.ID)
	assert.Equal(t, core.ScoreFused, hits[0].Kind)

	hits, err = r.Search(ctx, "vitamin d normal range", core.SearchModeVector, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(2), hits[0].Document.ID)
	assert.InDelta(t, 0.0, hits[0].Score, 1e-6)
}

func TestRetriever_TwoDocumentScenario(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))
	_, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)

	hits, err := r.Search(ctx, "hemoglobin deficiency", core.SearchModeLexical, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(1), hits[0].Document.ID)
	assert.Positive(t, hits[0].Score)

	// An empty query embeds to the zero vector: every document is equally far.
	hits, err = r.Search(ctx, "", core.SearchModeVector, 5)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.Equal(t, 1.0, hit.Score)
	}
}

func TestRetriever_TopK(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))
	_, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)

	_, err = r.Search(ctx, "hemoglobin", core.SearchModeHybrid, 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)

	hits, err := r.Search(ctx, "vitamin", core.SearchModeHybrid, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.ElementsMatch(t, []core.ID{1, 2}, ids(hits))
}

func TestRetriever_SearchEmptyCorpus(t *testing.T) {
	r := openRetriever(t, testConfig(t))

	for _, mode := range []core.SearchMode{core.SearchModeLexical, core.SearchModeVector, core.SearchModeHybrid} {
		hits, err := r.Search(context.Background(), "anything", mode, 5)
		require.NoError(t, err)
		assert.Empty(t, hits, mode)
	}
}

func TestRetriever_SearchWeighted(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))
	_, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)

	hits, err := r.SearchWeighted(ctx, "hemoglobin", 2, fusion.Weights{Lexical: 1, Vector: 0})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, core.ID(1), hits[0].Document.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestRetriever_Idempotent(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))

	_, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)
	first := r.Stats(ctx)

	_, err = r.Ingest(ctx, twoDocs)
	require.NoError(t, err)
	second := r.Stats(ctx)

	assert.Equal(t, first.DocumentCount, second.DocumentCount)
	assert.Equal(t, 2, second.VectorCount)
}

func TestRetriever_RejectsMalformedCorpus(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))
	_, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)

	bad := []core.Document{{ID: 9, Type: core.DocumentTypeBookChunk, Content: ""}}
	_, err = r.Ingest(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "id 9")

	stats := r.Stats(ctx)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 2, stats.VectorCount)
}

func TestRetriever_ReloadFromSnapshot(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	r, err := NewRetriever(cfg)
	require.NoError(t, err)
	_, err = r.Ingest(ctx, twoDocs)
	require.NoError(t, err)
	before, err := r.Search(ctx, "hemoglobin iron", core.SearchModeLexical, 5)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	reopened := openRetriever(t, cfg)
	stats := reopened.Stats(ctx)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 2, stats.VectorCount)

	after, err := reopened.Search(ctx, "hemoglobin iron", core.SearchModeLexical, 5)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, twoDocs, reopened.Documents())
}

func TestRetriever_DegradedVectorBackend(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t), WithVectorStore(failingStore{}))

	report, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)
	assert.True(t, report.Degraded())

	hits, err := r.Search(ctx, "hemoglobin", core.SearchModeHybrid, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(1), hits[0].Document.ID)

	result, err := r.SearchDetailed(ctx, "hemoglobin", core.SearchModeHybrid, 5, fusion.DefaultWeights)
	require.NoError(t, err)
	assert.True(t, result.Degraded())
	assert.True(t, storage.IsBackendError(result.VectorErr))

	hits, err = r.Search(ctx, "hemoglobin", core.SearchModeVector, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	stats := r.Stats(ctx)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Zero(t, stats.VectorCount)
	assert.ErrorIs(t, stats.VectorErr, errBackendDown)
}

func TestRetriever_IngestText(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))

	_, err := r.IngestText(ctx, "/books/reference.txt", "one two three four five six seven")
	require.NoError(t, err)

	docs := r.Documents()
	require.Len(t, docs, 4)
	assert.Equal(t, "one two three", docs[0].Content)
	assert.Equal(t, "seven", docs[3].Content)
	assert.Equal(t, "reference.txt", docs[0].Source)
	assert.Equal(t, "Chunk 1", docs[0].Title)
}

func TestRetriever_IngestFile(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))
	dir := t.TempDir()

	jsonl := filepath.Join(dir, "labs.jsonl")
	require.NoError(t, os.WriteFile(jsonl, []byte(
		`{"id": 10, "test": "Ferritin", "text": "ferritin low", "kind": "lab_excerpt"}`+"\n"+
			`{"id": 11, "test": "TSH", "text": "tsh normal", "kind": "lab_excerpt"}`+"\n"), 0644))

	_, err := r.IngestFile(ctx, jsonl)
	require.NoError(t, err)
	docs := r.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, core.DocumentTypeLabExcerpt, docs[0].Type)
	assert.Equal(t, "Ferritin", docs[0].Title)

	_, err = r.IngestFile(ctx, filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRetriever_Bootstrap(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	book := filepath.Join(dir, "book.txt")
	require.NoError(t, os.WriteFile(book, []byte("iron deficiency causes low hemoglobin levels"), 0644))
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(other, []byte("a b c d e f g h i j k l m n o p"), 0644))

	t.Run("loads only into an empty corpus", func(t *testing.T) {
		r := openRetriever(t, testConfig(t))

		require.NoError(t, r.Bootstrap(ctx, book))
		count := r.Stats(ctx).DocumentCount
		require.Positive(t, count)

		require.NoError(t, r.Bootstrap(ctx, other))
		assert.Equal(t, count, r.Stats(ctx).DocumentCount)
	})

	t.Run("missing file", func(t *testing.T) {
		r := openRetriever(t, testConfig(t))

		err := r.Bootstrap(ctx, filepath.Join(dir, "absent.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("continues degraded after retries", func(t *testing.T) {
		r := openRetriever(t, testConfig(t), WithVectorStore(failingStore{}))

		require.NoError(t, r.Bootstrap(ctx, book))
		hits, err := r.Search(ctx, "hemoglobin", core.SearchModeHybrid, 3)
		require.NoError(t, err)
		assert.NotEmpty(t, hits)
	})
}

func TestRetriever_ReferenceContext(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))
	_, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)

	hits, err := r.ReferenceContext(ctx, []string{"hemoglobin", "hemoglobin", "", "vitamin d"}, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.ID{1, 2}, ids(hits))
}

func TestRetriever_Ask(t *testing.T) {
	ctx := context.Background()

	t.Run("without generator", func(t *testing.T) {
		r := openRetriever(t, testConfig(t))
		_, err := r.Ask(ctx, "why is hemoglobin low?", core.SearchModeHybrid, 3, "")
		assert.ErrorIs(t, err, ErrGeneratorUnavailable)
	})

	t.Run("passes evidence to generator", func(t *testing.T) {
		generator := mock.NewMockGenerator()
		r := openRetriever(t, testConfig(t), WithGenerator(generator))
		_, err := r.Ingest(ctx, twoDocs)
		require.NoError(t, err)

		answer, err := r.Ask(ctx, "hemoglobin", core.SearchModeLexical, 3, "recent labs")
		require.NoError(t, err)
		assert.Equal(t, `answer to "hemoglobin" from 1 sections`, answer.Text)
		assert.NoError(t, answer.VectorErr)

		call, ok := generator.LastCall()
		require.True(t, ok)
		assert.Equal(t, "recent labs", call.ExternalContext)
		assert.Equal(t, []core.ID{1}, ids(call.Hits))
	})

	t.Run("generator failure", func(t *testing.T) {
		generator := mock.NewMockGenerator().WithGenerateAnswerFunc(
			func(context.Context, string, []core.Hit, string) (string, error) {
				return "", errors.New("model offline")
			})
		r := openRetriever(t, testConfig(t), WithGenerator(generator))

		_, err := r.Ask(ctx, "hemoglobin", core.SearchModeHybrid, 3, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model offline")
	})
}

func TestRetriever_Reembed(t *testing.T) {
	ctx := context.Background()
	r := openRetriever(t, testConfig(t))
	_, err := r.Ingest(ctx, twoDocs)
	require.NoError(t, err)

	var progress bytes.Buffer
	require.NoError(t, r.Reembed(ctx, &progress))
	assert.Contains(t, progress.String(), "Reembedding complete")
	assert.Equal(t, 2, r.Stats(ctx).VectorCount)
}

func TestRetriever_StuckVectorBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Ingestion.CallTimeoutSec = 1
	cfg.Search.TimeoutSec = 1
	r := openRetriever(t, cfg, WithVectorStore(stuckStore{}))

	within := func(name string, fn func()) {
		t.Helper()
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn()
		}()
		select {
		case <-done:
		case <-time.After(15 * time.Second):
			t.Fatalf("%s still blocked on the vector backend", name)
		}
	}

	within("Ingest", func() {
		report, err := r.Ingest(ctx, twoDocs)
		if !assert.NoError(t, err) {
			return
		}
		assert.True(t, report.Degraded())
		assert.ErrorIs(t, report.Err(), context.DeadlineExceeded)
	})
	assert.Len(t, r.Documents(), 2)

	// The ingest lock must have been released.
	within("second Ingest", func() {
		_, err := r.Ingest(ctx, twoDocs)
		assert.NoError(t, err)
	})

	within("Stats", func() {
		stats := r.Stats(ctx)
		assert.Equal(t, 2, stats.DocumentCount)
		assert.ErrorIs(t, stats.VectorErr, context.DeadlineExceeded)
		assert.True(t, storage.IsBackendError(stats.VectorErr))
	})

	within("Reembed", func() {
		err := r.Reembed(ctx, io.Discard)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	within("Search", func() {
		hits, err := r.Search(ctx, "hemoglobin", core.SearchModeHybrid, 5)
		assert.NoError(t, err)
		if assert.NotEmpty(t, hits) {
			assert.Equal(t, core.ID(1), hits[0].Document.ID)
		}
	})
}
