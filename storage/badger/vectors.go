package badger

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hybridrag/storage"
)

// DefaultCollection is the collection name used when none is given.
const DefaultCollection = "medical_knowledge"

// VectorStore implements storage.VectorStore on a badger backend. Each
// entry lives under vec:<collection>:<id>.
type VectorStore struct {
	backend    *Backend
	collection string
	prefix     []byte
	ownBackend bool
	logger     *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// newVectorStore is the internal constructor returning the concrete type.
func newVectorStore(backend *Backend, collection string) (*VectorStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", storage.ErrInvalidQuery)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &VectorStore{
		backend:    backend,
		collection: collection,
		prefix:     makeCollectionPrefix(collection),
		logger:     slog.Default().With("component", "vector-store", "collection", collection),
	}, nil
}

// NewVectorStore creates a vector collection on an open backend. Closing the
// store leaves the backend open.
func NewVectorStore(backend *Backend, collection string) (storage.VectorStore, error) {
	return newVectorStore(backend, collection)
}

// OpenVectorStore opens (or creates) an on-disk backend at path and returns
// a collection that owns it.
func OpenVectorStore(path, collection string) (storage.VectorStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, storage.NewBackendError("open", err)
	}
	store, err := newVectorStore(backend, collection)
	if err != nil {
		backend.Close()
		return nil, err
	}
	store.ownBackend = true
	return store, nil
}

func (s *VectorStore) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Reset deletes every entry of the collection.
func (s *VectorStore) Reset(ctx context.Context) error {
	if err := s.checkOpen(ctx); err != nil {
		return storage.NewBackendError("reset", err)
	}

	var keys [][]byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	if err != nil {
		return storage.NewBackendError("reset", err)
	}

	wb := s.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return storage.NewBackendError("reset", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return storage.NewBackendError("reset", err)
	}

	s.logger.Debug("collection reset", "removed", len(keys))
	return nil
}

// Add stores entries, replacing existing entries with the same id.
func (s *VectorStore) Add(ctx context.Context, entries ...storage.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.checkOpen(ctx); err != nil {
		return storage.NewBackendError("add", err)
	}

	wb := s.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for i := range entries {
		key := makeVectorKey(s.collection, entries[i].ID)
		if err := wb.Set(key, storage.MarshalVectorEntry(&entries[i])); err != nil {
			return storage.NewBackendError("add", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return storage.NewBackendError("add", err)
	}
	return nil
}

// Query scans the collection and returns the limit closest entries.
func (s *VectorStore) Query(ctx context.Context, vector []float32, limit int) ([]storage.VectorMatch, error) {
	if limit <= 0 {
		return []storage.VectorMatch{}, nil
	}
	if err := s.checkOpen(ctx); err != nil {
		return nil, storage.NewBackendError("query", err)
	}

	queryNorm := magnitude(vector)
	var matches []storage.VectorMatch

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var entry *storage.VectorEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalVectorEntry(val)
				return err
			})
			if err != nil {
				return err
			}

			matches = append(matches, storage.VectorMatch{
				Entry:    *entry,
				Distance: cosineDistance(vector, queryNorm, entry.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, storage.NewBackendError("query", err)
	}

	slices.SortFunc(matches, func(a, b storage.VectorMatch) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Entry.ID, b.Entry.ID)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count returns the number of entries in the collection.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, storage.NewBackendError("count", err)
	}

	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, storage.NewBackendError("count", err)
	}
	return count, nil
}

// Location returns the backend path and collection name.
func (s *VectorStore) Location() string {
	return s.backend.Path() + "#" + s.collection
}

// Close closes the backend when the store owns it.
func (s *VectorStore) Close() error {
	if !s.ownBackend || s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosineDistance returns 1 - cos(a, b). Vectors of different width are
// compared over their common prefix. A zero-magnitude side yields 1.
func cosineDistance(a []float32, aNorm float64, b []float32) float64 {
	bNorm := magnitude(b)
	if aNorm == 0 || bNorm == 0 {
		return 1
	}
	n := min(len(a), len(b))
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot/(aNorm*bNorm)
}
