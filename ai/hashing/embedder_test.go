package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbed_UnitLength(t *testing.T) {
	e := NewEmbedder(0)
	require.Equal(t, DefaultWidth, e.Width())

	v := e.Embed("hemoglobin low iron deficiency")
	require.Len(t, v, DefaultWidth)
	assert.InDelta(t, 1.0, norm(v), 1e-6)
}

func TestEmbed_ZeroMagnitude(t *testing.T) {
	e := NewEmbedder(16)
	for _, text := range []string{"", "   ", "\n"} {
		v := e.Embed(text)
		require.Len(t, v, 16)
		for _, x := range v {
			assert.Zero(t, x)
		}
	}
}

func TestEmbed_Deterministic(t *testing.T) {
	a := NewEmbedder(DefaultWidth).Embed("Vitamin D normal range")
	b := NewEmbedder(DefaultWidth).Embed("vitamin d   NORMAL range")
	assert.Equal(t, a, b)
}

func TestEmbed_BucketPlacement(t *testing.T) {
	e := NewEmbedder(8)
	v := e.Embed("ferritin ferritin")

	bucket := xxhash.Sum64String("ferritin") % 8
	for i, x := range v {
		if uint64(i) == bucket {
			assert.InDelta(t, 1.0, x, 1e-6)
		} else {
			assert.Zero(t, x)
		}
	}
}

func TestEmbedTexts(t *testing.T) {
	e := NewEmbedder(32)
	vs, err := e.EmbedTexts(context.Background(), []string{"a b", "", "c"})
	require.NoError(t, err)
	require.Len(t, vs, 3)
	assert.Equal(t, e.Embed("a b"), vs[0])
	assert.Equal(t, e.Embed("c"), vs[2])

	single, err := e.EmbedText(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, vs[0], single)
}

func TestEmbed_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEmbedder(8).EmbedText(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestName(t *testing.T) {
	assert.Equal(t, "xxhash64-bow-v1", NewEmbedder(8).Name())
}
