package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/hybridrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestChunk_Windows(t *testing.T) {
	chunks, err := Chunk(words(10), 4, 1)
	require.NoError(t, err)

	// stride 3: starts at 0, 3, 6, 9
	require.Len(t, chunks, 4)
	assert.Equal(t, "w0 w1 w2 w3", chunks[0])
	assert.Equal(t, "w3 w4 w5 w6", chunks[1])
	assert.Equal(t, "w6 w7 w8 w9", chunks[2])
	assert.Equal(t, "w9", chunks[3])
}

func TestChunk_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		chunks, err := Chunk(text, 5, 2)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunk_InvalidConfig(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 5, 5},
		{"overlap exceeds size", 5, 8},
		{"zero size", 0, 0},
		{"negative size", -3, 0},
		{"negative overlap", 5, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Chunk("a b c d e f", tt.size, tt.overlap)
			require.ErrorIs(t, err, ErrInvalidChunkConfig)
			assert.Nil(t, chunks)
		})
	}
}

func TestChunk_BoundsAndCoverage(t *testing.T) {
	for n := 0; n <= 25; n++ {
		text := words(n)
		for size := 1; size <= 7; size++ {
			for overlap := 0; overlap < size; overlap++ {
				chunks, err := Chunk(text, size, overlap)
				require.NoError(t, err)

				seen := make(map[string]bool)
				for _, c := range chunks {
					fields := strings.Fields(c)
					require.NotEmpty(t, fields, "n=%d size=%d overlap=%d", n, size, overlap)
					require.LessOrEqual(t, len(fields), size, "n=%d size=%d overlap=%d", n, size, overlap)
					for _, f := range fields {
						seen[f] = true
					}
				}
				for _, w := range strings.Fields(text) {
					require.True(t, seen[w], "word %s missing for n=%d size=%d overlap=%d", w, n, size, overlap)
				}
			}
		}
	}
}

func TestChunk_CollapsesWhitespace(t *testing.T) {
	chunks, err := Chunk("  alpha\n\nbeta\tgamma  ", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha beta gamma"}, chunks)
}

func TestDocuments(t *testing.T) {
	docs, err := Documents("/data/books/anemia.txt", words(5), 3, 1)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	for i, doc := range docs {
		assert.Equal(t, core.ID(i+1), doc.ID)
		assert.Equal(t, core.DocumentTypeBookChunk, doc.Type)
		assert.Equal(t, fmt.Sprintf("Chunk %d", i+1), doc.Title)
		assert.Equal(t, "anemia.txt", doc.Source)
		assert.NoError(t, core.ValidateDocument(&doc))
	}
}

func TestDocuments_NoFileName(t *testing.T) {
	docs, err := Documents("", "one two", 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, core.DefaultSource, docs[0].Source)
}

func TestDocuments_InvalidConfig(t *testing.T) {
	_, err := Documents("x.txt", "one two", 2, 2)
	assert.ErrorIs(t, err, ErrInvalidChunkConfig)
}
