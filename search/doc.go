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


// Package search runs queries against the lexical index, the vector
// collection, or both.
//
// The Searcher dispatches on core.SearchMode:
//   - lexical: BM25 ranking over the in-memory index
//   - vector: cosine nearest neighbors from the vector store, resolved back
//     to the live document table
//   - hybrid: both of the above run concurrently with 2*k candidates each,
//     then merged by fusion.Fuse
//
// Vector failures never fail a search. They are returned inside Result as
// VectorErr (always a *storage.BackendError) so callers and tests can see
// the degradation while still receiving the lexical ranking.
package search
