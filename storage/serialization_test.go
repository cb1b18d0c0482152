package storage

import (
	"errors"
	"testing"

	"github.com/poiesic/hybridrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalVectorEntry(t *testing.T) {
	entry := &VectorEntry{
		ID:      7,
		Vector:  []float32{0.25, -0.5, 0, 1},
		Content: "Iron deficiency causes low ferritin.",
		Title:   "Chunk 7",
		Type:    core.DocumentTypeBookChunk,
		Source:  "handbook.txt",
	}

	decoded, err := UnmarshalVectorEntry(MarshalVectorEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestUnmarshalVectorEntry_Truncated(t *testing.T) {
	data := MarshalVectorEntry(&VectorEntry{ID: 1, Vector: []float32{1, 2, 3}, Content: "abc"})

	_, err := UnmarshalVectorEntry(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestEntryDocumentRoundTrip(t *testing.T) {
	doc := core.Document{ID: 3, Type: core.DocumentTypeLabExcerpt, Title: "t", Content: "c", Source: "s"}
	entry := EntryFromDocument(doc, []float32{1})
	assert.Equal(t, doc, entry.Document())
}

func TestBackendError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewBackendError("add", cause)

	assert.True(t, IsBackendError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "vector backend add: disk full", err.Error())

	// Already wrapped errors are not wrapped twice.
	again := NewBackendError("query", err)
	assert.Same(t, err, again)

	assert.Nil(t, NewBackendError("noop", nil))
	assert.False(t, IsBackendError(cause))
}
