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


// Package chunker splits raw text into overlapping word windows and wraps
// them as documents ready for indexing.
package chunker

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/hybridrag/core"
)

const (
	// DefaultSize is the default number of words per chunk.
	DefaultSize = 1000
	// DefaultOverlap is the default number of words shared by consecutive chunks.
	DefaultOverlap = 200
)

// ErrInvalidChunkConfig indicates a size/overlap pair that cannot make progress.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Validate checks that size and overlap produce a positive stride.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidChunkConfig, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidChunkConfig, overlap, size)
	}
	return nil
}

// Chunk splits text on whitespace and returns windows of up to size words.
// A new window starts every size-overlap words, so consecutive windows share
// overlap words. Empty input yields no chunks.
func Chunk(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	stride := size - overlap
	chunks := make([]string, 0, (len(words)+stride-1)/stride)
	for start := 0; start < len(words); start += stride {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks, nil
}

// Documents chunks text and wraps each chunk as a book_chunk document with a
// 1-based id, a "Chunk n" title and the base name of fileName as its source.
func Documents(fileName, text string, size, overlap int) ([]core.Document, error) {
	chunks, err := Chunk(text, size, overlap)
	if err != nil {
		return nil, err
	}

	source := core.DefaultSource
	if fileName != "" {
		source = filepath.Base(fileName)
	}

	docs := make([]core.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = core.Document{
			ID:      core.ID(i + 1),
			Type:    core.DocumentTypeBookChunk,
			Title:   fmt.Sprintf("Chunk %d", i+1),
			Content: chunk,
			Source:  source,
		}
	}
	return docs, nil
}
