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


// Package persist saves and loads index snapshots.
//
// A snapshot is the document table plus the lexical index state. The two
// artifacts are written as a generation pair, documents-<gen>.mus and
// lexical-<gen>.mus, and a CURRENT file naming the generation is swapped in
// with an atomic rename once both are on disk. Readers only ever follow
// CURRENT, so a crash mid-save leaves the previous pair in effect.
//
//	manager, err := persist.NewManager(dir)
//	if err := manager.Save(docs, index); err != nil { ... }
//
//	snapshot, err := manager.Load()
//	if errors.Is(err, persist.ErrNoSnapshot) {
//	    // start empty
//	}
package persist
