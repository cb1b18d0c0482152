package lexical

import (
	"testing"

	"github.com/poiesic/hybridrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labDocs() []core.Document {
	return []core.Document{
		{ID: 1, Type: core.DocumentTypeLabExcerpt, Title: "Iron", Content: "hemoglobin low iron deficiency", Source: "labs"},
		{ID: 2, Type: core.DocumentTypeLabExcerpt, Title: "Vitamin D", Content: "vitamin d normal range", Source: "labs"},
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hemoglobin", "low,", "iron"}, Tokenize("  Hemoglobin LOW,\n iron "))
	assert.Empty(t, Tokenize(""))
}

func TestSearch_TwoDocumentScenario(t *testing.T) {
	idx := Build(labDocs())

	hits := idx.Search("hemoglobin deficiency", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(1), hits[0].Document.ID)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.Equal(t, core.ScoreRelevance, hits[0].Kind)
}

func TestSearch_ExcludesZeroScores(t *testing.T) {
	idx := Build(labDocs())

	hits := idx.Search("hemoglobin", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(1), hits[0].Document.ID)

	assert.Empty(t, idx.Search("cholesterol", 10))
	assert.Empty(t, idx.Search("", 10))
}

func TestSearch_TopKLargerThanCorpus(t *testing.T) {
	docs := []core.Document{
		{ID: 1, Type: core.DocumentTypeBookChunk, Content: "iron iron iron"},
		{ID: 2, Type: core.DocumentTypeBookChunk, Content: "iron stores"},
		{ID: 3, Type: core.DocumentTypeBookChunk, Content: "serum iron binding"},
	}
	idx := Build(docs)

	hits := idx.Search("iron", 50)
	assert.Len(t, hits, 3)
}

func TestSearch_StableTies(t *testing.T) {
	docs := []core.Document{
		{ID: 30, Type: core.DocumentTypeBookChunk, Content: "ferritin level"},
		{ID: 10, Type: core.DocumentTypeBookChunk, Content: "unrelated text"},
		{ID: 20, Type: core.DocumentTypeBookChunk, Content: "ferritin level"},
		{ID: 40, Type: core.DocumentTypeBookChunk, Content: "ferritin level"},
	}
	idx := Build(docs)

	hits := idx.Search("ferritin", 3)
	require.Len(t, hits, 3)
	assert.Equal(t, core.ID(30), hits[0].Document.ID)
	assert.Equal(t, core.ID(20), hits[1].Document.ID)
	assert.Equal(t, core.ID(40), hits[2].Document.ID)
	assert.Equal(t, hits[0].Score, hits[1].Score)
}

func TestSearch_RanksByRelevance(t *testing.T) {
	docs := []core.Document{
		{ID: 1, Type: core.DocumentTypeBookChunk, Content: "platelet count normal with a long tail of filler words here"},
		{ID: 2, Type: core.DocumentTypeBookChunk, Content: "platelet platelet low"},
		{ID: 3, Type: core.DocumentTypeBookChunk, Content: "glucose fasting"},
	}
	idx := Build(docs)

	hits := idx.Search("platelet", 5)
	require.Len(t, hits, 2)
	assert.Equal(t, core.ID(2), hits[0].Document.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_EmptyIndex(t *testing.T) {
	var nilIdx *Index
	assert.Empty(t, nilIdx.Search("anything", 5))
	assert.Equal(t, 0, nilIdx.Len())

	idx := Build(nil)
	assert.Empty(t, idx.Search("anything", 5))
	assert.Equal(t, 0, idx.Len())
}

func TestSearch_NonPositiveTopK(t *testing.T) {
	idx := Build(labDocs())
	assert.Empty(t, idx.Search("hemoglobin", 0))
	assert.Empty(t, idx.Search("hemoglobin", -1))
}

func TestSearch_DoesNotMutate(t *testing.T) {
	idx := Build(labDocs())
	before := idx.MarshalState()
	idx.Search("hemoglobin deficiency vitamin", 5)
	idx.Search("unknown", 5)
	assert.Equal(t, len(before), len(idx.MarshalState()))
	assert.Equal(t, 2, idx.Len())
}

func TestBuild_CopiesInput(t *testing.T) {
	docs := labDocs()
	idx := Build(docs)
	docs[0].Content = "changed"

	doc, ok := idx.Document(1)
	require.True(t, ok)
	assert.Equal(t, "hemoglobin low iron deficiency", doc.Content)

	_, ok = idx.Document(99)
	assert.False(t, ok)
}

func TestIDF_AlwaysPositive(t *testing.T) {
	docs := []core.Document{
		{ID: 1, Type: core.DocumentTypeBookChunk, Content: "common rare"},
		{ID: 2, Type: core.DocumentTypeBookChunk, Content: "common"},
		{ID: 3, Type: core.DocumentTypeBookChunk, Content: "common"},
	}
	idx := Build(docs)
	assert.Greater(t, idx.idf("common"), 0.0)
	assert.Greater(t, idx.idf("rare"), idx.idf("common"))
}
