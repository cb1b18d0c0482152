// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"

	"github.com/poiesic/hybridrag/core"
)

const (
	// DefaultBatchSize is the default number of documents in each batch
	DefaultBatchSize = 100
)

// DocumentIterator walks a document table in fixed-size batches.
type DocumentIterator struct {
	docs      []core.Document
	batchSize int
}

// NewDocumentIterator creates a new document iterator.
// batchSize: number of documents in each batch; non-positive uses DefaultBatchSize
func NewDocumentIterator(docs []core.Document, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &DocumentIterator{
		docs:      docs,
		batchSize: batchSize,
	}
}

// BatchCount returns the number of batches ForEach will produce.
func (it *DocumentIterator) BatchCount() int {
	return (len(it.docs) + it.batchSize - 1) / it.batchSize
}

// ForEach calls fn for each batch in order with the batch's index.
// Iteration stops on first error from fn or when all documents are processed.
// Context cancellation is checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func(index int, batch []core.Document) error) error {
	for i := 0; i < len(it.docs); i += it.batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := min(i+it.batchSize, len(it.docs))
		if err := fn(i/it.batchSize, it.docs[i:end]); err != nil {
			return err
		}
	}
	return nil
}
