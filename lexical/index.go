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


// Package lexical implements a BM25 ranking index over a document corpus.
//
// The index is rebuilt in full whenever the corpus changes; there is no
// incremental add. Queries never mutate it, so a built Index is safe for
// concurrent readers.
package lexical

import (
	"math"
	"sort"
	"strings"

	"github.com/poiesic/hybridrag/core"
)

const (
	// K1 controls term frequency saturation.
	K1 = 1.5
	// B controls document length normalization.
	B = 0.75
)

// Index is an immutable BM25 index together with the documents it ranks.
type Index struct {
	docs      []core.Document
	positions map[core.ID]int
	tokens    [][]string
	termFreqs []map[string]int
	docFreq   map[string]int
	avgLen    float64
}

// Tokenize lower-cases text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Build creates a new index over docs. The slice is copied so later changes
// by the caller do not leak into the index.
func Build(docs []core.Document) *Index {
	tokens := make([][]string, len(docs))
	for i := range docs {
		tokens[i] = Tokenize(docs[i].Content)
	}
	return newIndex(docs, tokens)
}

func newIndex(docs []core.Document, tokens [][]string) *Index {
	idx := &Index{
		docs:      append([]core.Document(nil), docs...),
		positions: make(map[core.ID]int, len(docs)),
		tokens:    tokens,
		termFreqs: make([]map[string]int, len(docs)),
		docFreq:   make(map[string]int),
	}

	total := 0
	for i := range idx.docs {
		idx.positions[idx.docs[i].ID] = i
		tf := make(map[string]int, len(tokens[i]))
		for _, tok := range tokens[i] {
			tf[tok]++
		}
		for tok := range tf {
			idx.docFreq[tok]++
		}
		idx.termFreqs[i] = tf
		total += len(tokens[i])
	}
	if len(idx.docs) > 0 {
		idx.avgLen = float64(total) / float64(len(idx.docs))
	}
	return idx
}

// Len returns the number of indexed documents. A nil index is empty.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.docs)
}

// Documents returns the indexed documents in insertion order.
// Callers must not modify the returned slice.
func (idx *Index) Documents() []core.Document {
	if idx == nil {
		return nil
	}
	return idx.docs
}

// Document looks up an indexed document by id.
func (idx *Index) Document(id core.ID) (core.Document, bool) {
	if idx == nil {
		return core.Document{}, false
	}
	pos, ok := idx.positions[id]
	if !ok {
		return core.Document{}, false
	}
	return idx.docs[pos], true
}

// idf is the BM25 inverse document frequency. The +1 inside the log keeps it
// positive even for terms present in more than half the corpus.
func (idx *Index) idf(term string) float64 {
	n := float64(idx.docFreq[term])
	total := float64(len(idx.docs))
	return math.Log(1 + (total-n+0.5)/(n+0.5))
}

// Scores returns the BM25 score of every document for query, in insertion order.
func (idx *Index) Scores(query string) []float64 {
	if idx.Len() == 0 {
		return nil
	}
	scores := make([]float64, len(idx.docs))
	for _, term := range Tokenize(query) {
		if idx.docFreq[term] == 0 {
			continue
		}
		idf := idx.idf(term)
		for i, tf := range idx.termFreqs {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			norm := 1 - B
			if idx.avgLen > 0 {
				norm += B * float64(len(idx.tokens[i])) / idx.avgLen
			}
			scores[i] += idf * f * (K1 + 1) / (f + K1*norm)
		}
	}
	return scores
}

// Search returns up to topK documents with a positive score, best first.
// Ties keep insertion order. An empty index or non-positive topK yields no hits.
func (idx *Index) Search(query string, topK int) []core.Hit {
	if idx.Len() == 0 || topK <= 0 {
		return nil
	}

	scores := idx.Scores(query)
	candidates := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return scores[candidates[a]] > scores[candidates[b]]
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	hits := make([]core.Hit, len(candidates))
	for i, pos := range candidates {
		hits[i] = core.Hit{
			Document: idx.docs[pos],
			Score:    scores[pos],
			Kind:     core.ScoreRelevance,
		}
	}
	return hits
}
