package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/hybridrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIterator_ForEach(t *testing.T) {
	docs := makeDocs(10)

	tests := []struct {
		name      string
		batchSize int
		batches   int
	}{
		{"batch size 1", 1, 10},
		{"batch size 3", 3, 4},
		{"batch size 5", 5, 2},
		{"batch size larger than corpus", 100, 1},
		{"default batch size", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewDocumentIterator(docs, tt.batchSize)
			assert.Equal(t, tt.batches, it.BatchCount())

			var seen []core.ID
			var indexes []int
			err := it.ForEach(context.Background(), func(index int, batch []core.Document) error {
				indexes = append(indexes, index)
				if tt.batchSize > 0 {
					assert.LessOrEqual(t, len(batch), tt.batchSize, "batch should not exceed batchSize")
				}
				for _, d := range batch {
					seen = append(seen, d.ID)
				}
				return nil
			})
			require.NoError(t, err)
			assert.Len(t, indexes, tt.batches)
			assert.Equal(t, []core.ID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seen)
		})
	}
}

func TestDocumentIterator_Empty(t *testing.T) {
	it := NewDocumentIterator(nil, 10)
	assert.Zero(t, it.BatchCount())

	called := false
	err := it.ForEach(context.Background(), func(int, []core.Document) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestDocumentIterator_StopsOnError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := NewDocumentIterator(makeDocs(6), 2).ForEach(context.Background(), func(int, []core.Document) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestDocumentIterator_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewDocumentIterator(makeDocs(6), 2).ForEach(ctx, func(int, []core.Document) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
