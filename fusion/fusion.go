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


// Package fusion merges lexical and vector rankings into one list.
package fusion

import (
	"sort"

	"github.com/poiesic/hybridrag/core"
)

// Weights are the contributions of each side to a fused score.
type Weights struct {
	Lexical float64
	Vector  float64
}

// DefaultWeights favors lexical evidence.
var DefaultWeights = Weights{Lexical: 0.6, Vector: 0.4}

// Similarity converts a vector distance into a similarity in (0, 1].
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

type candidate struct {
	doc     core.Document
	lexical float64
	vector  float64
}

// Fuse combines lexical hits (relevance scores) and vector hits (distances)
// into at most topK hits with ScoreFused scores.
//
// Each side is normalized by its own maximum, lexical by raw relevance and
// vector by Similarity of the distance. A side without hits contributes 0.
// Documents are keyed by id; the first occurrence supplies the document, with
// lexical hits considered before vector hits. Equal fused scores keep that
// order of first appearance.
func Fuse(lexical, vector []core.Hit, w Weights, topK int) []core.Hit {
	if topK <= 0 {
		return []core.Hit{}
	}

	maxLexical := 1.0
	if len(lexical) > 0 {
		maxLexical = lexical[0].Score
		for _, h := range lexical[1:] {
			maxLexical = max(maxLexical, h.Score)
		}
	}
	maxVector := 1.0
	if len(vector) > 0 {
		maxVector = Similarity(vector[0].Score)
		for _, h := range vector[1:] {
			maxVector = max(maxVector, Similarity(h.Score))
		}
	}

	var order []*candidate
	byID := make(map[core.ID]*candidate, len(lexical)+len(vector))
	lookup := func(doc core.Document) *candidate {
		if c, ok := byID[doc.ID]; ok {
			return c
		}
		c := &candidate{doc: doc}
		byID[doc.ID] = c
		order = append(order, c)
		return c
	}

	for _, h := range lexical {
		if maxLexical > 0 {
			lookup(h.Document).lexical = h.Score / maxLexical
		} else {
			lookup(h.Document)
		}
	}
	for _, h := range vector {
		if maxVector > 0 {
			lookup(h.Document).vector = Similarity(h.Score) / maxVector
		} else {
			lookup(h.Document)
		}
	}

	hits := make([]core.Hit, len(order))
	for i, c := range order {
		hits[i] = core.Hit{
			Document: c.doc,
			Score:    w.Lexical*c.lexical + w.Vector*c.vector,
			Kind:     core.ScoreFused,
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// DedupeByContent drops hits whose content was already seen, keeping the
// first occurrence and the original order.
func DedupeByContent(hits []core.Hit) []core.Hit {
	seen := make(map[core.ID]struct{}, len(hits))
	out := make([]core.Hit, 0, len(hits))
	for _, h := range hits {
		key := core.IDFromContent(h.Document.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}
