package fusion

import (
	"testing"

	"github.com/poiesic/hybridrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id core.ID, content string) core.Document {
	return core.Document{ID: id, Type: core.DocumentTypeBookChunk, Content: content, Source: "test"}
}

func lex(d core.Document, score float64) core.Hit {
	return core.Hit{Document: d, Score: score, Kind: core.ScoreRelevance}
}

func vec(d core.Document, distance float64) core.Hit {
	return core.Hit{Document: d, Score: distance, Kind: core.ScoreDistance}
}

func ids(hits []core.Hit) []core.ID {
	out := make([]core.ID, len(hits))
	for i, h := range hits {
		out[i] = h.Document.ID
	}
	return out
}

func TestFuse_BothSides(t *testing.T) {
	a, b, c := doc(1, "a"), doc(2, "b"), doc(3, "c")

	hits := Fuse(
		[]core.Hit{lex(a, 2.0), lex(b, 1.0)},
		[]core.Hit{vec(c, 0.0), vec(a, 1.0)},
		DefaultWeights, 10)

	require.Len(t, hits, 3)
	// a: 0.6*1 + 0.4*(0.5/1) = 0.8
	// c: 0.4*1 = 0.4
	// b: 0.6*0.5 = 0.3
	assert.Equal(t, []core.ID{1, 3, 2}, ids(hits))
	assert.InDelta(t, 0.8, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.4, hits[1].Score, 1e-9)
	assert.InDelta(t, 0.3, hits[2].Score, 1e-9)
	for _, h := range hits {
		assert.Equal(t, core.ScoreFused, h.Kind)
	}
}

func TestFuse_VectorSideEmpty(t *testing.T) {
	a, b := doc(1, "a"), doc(2, "b")

	hits := Fuse([]core.Hit{lex(a, 4), lex(b, 2)}, nil, DefaultWeights, 5)

	require.Len(t, hits, 2)
	assert.Equal(t, []core.ID{1, 2}, ids(hits))
	assert.InDelta(t, 0.6, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.3, hits[1].Score, 1e-9)
}

func TestFuse_LexicalSideEmpty(t *testing.T) {
	a, b := doc(1, "a"), doc(2, "b")

	hits := Fuse(nil, []core.Hit{vec(a, 0.5), vec(b, 1)}, DefaultWeights, 5)

	require.Len(t, hits, 2)
	assert.Equal(t, []core.ID{1, 2}, ids(hits))
	assert.InDelta(t, 0.4, hits[0].Score, 1e-9)
}

func TestFuse_BothEmpty(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, DefaultWeights, 5))
	assert.Empty(t, Fuse([]core.Hit{lex(doc(1, "a"), 1)}, nil, DefaultWeights, 0))
}

func TestFuse_TopK(t *testing.T) {
	var lexical []core.Hit
	for i := 1; i <= 6; i++ {
		lexical = append(lexical, lex(doc(core.ID(i), "x"), float64(10-i)))
	}
	hits := Fuse(lexical, nil, DefaultWeights, 3)
	assert.Equal(t, []core.ID{1, 2, 3}, ids(hits))
}

func TestFuse_TiesKeepFirstAppearance(t *testing.T) {
	a, b, c := doc(1, "a"), doc(2, "b"), doc(3, "c")

	// a only lexical (0.6*1), c only vector with equal contribution when
	// weights are balanced; b appears last.
	hits := Fuse(
		[]core.Hit{lex(a, 1)},
		[]core.Hit{vec(c, 0), vec(b, 0)},
		Weights{Lexical: 0.5, Vector: 0.5}, 10)

	assert.Equal(t, []core.ID{1, 3, 2}, ids(hits))
}

func TestFuse_ScoresWithinUnitInterval(t *testing.T) {
	a, b, c := doc(1, "a"), doc(2, "b"), doc(3, "c")
	hits := Fuse(
		[]core.Hit{lex(a, 7.3), lex(b, 0.2), lex(c, 3.1)},
		[]core.Hit{vec(b, 0.1), vec(c, 1.7), vec(a, 0.9)},
		DefaultWeights, 10)

	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0+1e-12)
	}
}

// Raising a document's lexical score while the rest of the input stays the
// same never moves it down.
func TestFuse_MonotoneInLexicalScore(t *testing.T) {
	a, b, c := doc(1, "a"), doc(2, "b"), doc(3, "c")
	vectorHits := []core.Hit{vec(a, 0.2), vec(b, 0.4), vec(c, 0.1)}

	rank := func(hits []core.Hit, id core.ID) int {
		for i, h := range hits {
			if h.Document.ID == id {
				return i
			}
		}
		return len(hits)
	}

	prev := len(vectorHits)
	for _, score := range []float64{0.5, 1, 2, 4, 8} {
		hits := Fuse(
			[]core.Hit{lex(c, 3), lex(b, score)},
			vectorHits, DefaultWeights, 10)
		r := rank(hits, 2)
		assert.LessOrEqual(t, r, prev, "score %v", score)
		prev = r
	}
	assert.Equal(t, 0, prev)
}

func TestFuse_FirstOccurrenceSuppliesDocument(t *testing.T) {
	fromLexical := core.Document{ID: 1, Content: "lexical copy"}
	fromVector := core.Document{ID: 1, Content: "vector copy"}

	hits := Fuse([]core.Hit{lex(fromLexical, 1)}, []core.Hit{vec(fromVector, 0)}, DefaultWeights, 5)
	require.Len(t, hits, 1)
	assert.Equal(t, "lexical copy", hits[0].Document.Content)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(0))
	assert.Equal(t, 0.5, Similarity(1))
}

func TestDedupeByContent(t *testing.T) {
	hits := []core.Hit{
		lex(doc(1, "same"), 3),
		lex(doc(2, "other"), 2),
		lex(doc(3, "same"), 1),
	}

	out := DedupeByContent(hits)
	assert.Equal(t, []core.ID{1, 2}, ids(out))
	assert.Empty(t, DedupeByContent(nil))
}
