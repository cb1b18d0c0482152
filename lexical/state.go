package lexical

import (
	"errors"
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/hybridrag/core"
)

var (
	// ErrStateMismatch indicates serialized state that does not describe the
	// document table it is restored against.
	ErrStateMismatch = errors.New("lexical state does not match document table")

	// ErrCorruptState indicates serialized state that cannot be decoded.
	ErrCorruptState = errors.New("corrupt lexical state")
)

var (
	idsMUS     = core.NewBoundedSliceSer[core.ID](core.IDMUS)
	tokensMUS  = core.NewBoundedSliceSer[[]string](core.NewBoundedSliceSer[string](ord.String))
	docFreqMUS = core.NewBoundedMapSer[string, int](ord.String, varint.PositiveInt)
)

// MarshalState serializes the index's term statistics and token cache.
// The documents themselves are not included; Restore pairs the state with
// the document table saved alongside it.
func (idx *Index) MarshalState() []byte {
	ids := make([]core.ID, idx.Len())
	for i, doc := range idx.Documents() {
		ids[i] = doc.ID
	}
	var tokens [][]string
	var docFreq map[string]int
	var avgLen float64
	if idx != nil {
		tokens, docFreq, avgLen = idx.tokens, idx.docFreq, idx.avgLen
	}

	size := idsMUS.Size(ids) + tokensMUS.Size(tokens) + docFreqMUS.Size(docFreq) + varint.Float64.Size(avgLen)
	buf := make([]byte, size)
	n := idsMUS.Marshal(ids, buf)
	n += tokensMUS.Marshal(tokens, buf[n:])
	n += docFreqMUS.Marshal(docFreq, buf[n:])
	varint.Float64.Marshal(avgLen, buf[n:])
	return buf
}

// Restore rebuilds an index from state produced by MarshalState and the
// document table it was saved with. The ids recorded in the state must match
// docs exactly, in order.
func Restore(state []byte, docs []core.Document) (*Index, error) {
	ids, n, err := idsMUS.Unmarshal(state)
	if err != nil {
		return nil, fmt.Errorf("%w: ids: %w", ErrCorruptState, err)
	}
	tokens, n1, err := tokensMUS.Unmarshal(state[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: tokens: %w", ErrCorruptState, err)
	}
	n += n1
	docFreq, n1, err := docFreqMUS.Unmarshal(state[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: document frequencies: %w", ErrCorruptState, err)
	}
	n += n1
	avgLen, _, err := varint.Float64.Unmarshal(state[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: average length: %w", ErrCorruptState, err)
	}

	if len(ids) != len(docs) || len(tokens) != len(docs) {
		return nil, fmt.Errorf("%w: state has %d documents, table has %d", ErrStateMismatch, len(ids), len(docs))
	}
	for i := range docs {
		if ids[i] != docs[i].ID {
			return nil, fmt.Errorf("%w: position %d holds id %d, table has %d", ErrStateMismatch, i, ids[i], docs[i].ID)
		}
	}

	idx := newIndex(docs, tokens)
	if len(docFreq) != len(idx.docFreq) {
		return nil, fmt.Errorf("%w: %d terms recorded, %d derived", ErrStateMismatch, len(docFreq), len(idx.docFreq))
	}
	if len(docs) > 0 && avgLen != idx.avgLen {
		return nil, fmt.Errorf("%w: average length %f recorded, %f derived", ErrStateMismatch, avgLen, idx.avgLen)
	}
	return idx, nil
}
