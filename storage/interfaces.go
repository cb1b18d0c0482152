package storage

import (
	"context"

	"github.com/poiesic/hybridrag/core"
)

// VectorEntry is one stored embedding together with the document fields
// needed to render a hit without consulting the document table.
type VectorEntry struct {
	ID      core.ID
	Vector  []float32
	Content string
	Title   string
	Type    core.DocumentType
	Source  string
}

// EntryFromDocument pairs doc with its embedding.
func EntryFromDocument(doc core.Document, vector []float32) VectorEntry {
	return VectorEntry{
		ID:      doc.ID,
		Vector:  vector,
		Content: doc.Content,
		Title:   doc.Title,
		Type:    doc.Type,
		Source:  doc.Source,
	}
}

// Document returns the document fields carried by the entry.
func (e VectorEntry) Document() core.Document {
	return core.Document{
		ID:      e.ID,
		Type:    e.Type,
		Title:   e.Title,
		Content: e.Content,
		Source:  e.Source,
	}
}

// VectorMatch is a query result. Distance is the cosine distance 1 - cos,
// so smaller is closer.
type VectorMatch struct {
	Entry    VectorEntry
	Distance float64
}

// VectorStore is a persistent, named collection of embeddings keyed by
// document id. Implementations must be thread-safe; every failure is
// reported as a *BackendError.
type VectorStore interface {
	// Reset deletes the collection and recreates it empty.
	Reset(ctx context.Context) error

	// Add stores entries, replacing any existing entry with the same id.
	Add(ctx context.Context, entries ...VectorEntry) error

	// Query returns up to limit entries ordered by ascending cosine
	// distance to vector, ties broken by id. Entries or queries with zero
	// magnitude are at distance 1 from everything.
	Query(ctx context.Context, vector []float32, limit int) ([]VectorMatch, error)

	// Count returns the number of entries in the collection.
	Count(ctx context.Context) (int, error)

	// Location describes where the collection is stored.
	Location() string

	// Close releases the store.
	Close() error
}
