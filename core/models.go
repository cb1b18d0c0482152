package core

import (
	"encoding/binary"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for documents.
// It is either assigned by the caller or derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentType classifies a document. The set is open; these are the kinds
// produced by the chunker and the record adapter.
type DocumentType string

const (
	// DocumentTypeBookChunk is a window of a larger reference text.
	DocumentTypeBookChunk DocumentType = "book_chunk"
	// DocumentTypeLabExcerpt is a short excerpt describing a lab reading.
	DocumentTypeLabExcerpt DocumentType = "lab_excerpt"
)

// DefaultSource is recorded when a document arrives without a source.
const DefaultSource = "unknown"

// Document is the unit of retrieval. Documents are immutable once indexed.
type Document struct {
	ID      ID
	Type    DocumentType
	Title   string
	Content string
	Source  string
}

// ScoreKind tells how a Hit's score must be read.
type ScoreKind int

const (
	// ScoreRelevance is a lexical relevance score; higher is better and always > 0.
	ScoreRelevance ScoreKind = iota + 1
	// ScoreDistance is a vector distance; lower is better.
	ScoreDistance
	// ScoreFused is a normalized weighted sum in [0,1]; higher is better.
	ScoreFused
)

func (k ScoreKind) String() string {
	switch k {
	case ScoreRelevance:
		return "relevance"
	case ScoreDistance:
		return "distance"
	case ScoreFused:
		return "fused"
	default:
		return "unknown"
	}
}

// Hit is a ranked document together with the score that ranked it.
type Hit struct {
	Document Document
	Score    float64
	Kind     ScoreKind
}

// SearchMode selects which index answers a query.
type SearchMode string

const (
	SearchModeLexical SearchMode = "lexical"
	SearchModeVector  SearchMode = "vector"
	SearchModeHybrid  SearchMode = "hybrid"
)

// ParseSearchMode maps a user supplied mode name to a SearchMode.
// "bm25" is accepted as an alias for lexical. Anything unrecognized is hybrid.
func ParseSearchMode(s string) SearchMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lexical", "bm25":
		return SearchModeLexical
	case "vector":
		return SearchModeVector
	default:
		return SearchModeHybrid
	}
}
