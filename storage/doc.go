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


// Package storage provides the storage abstraction layer for the vector index.
//
// This package defines the VectorStore interface that decouples the
// embedding collection from search and ingestion. It allows different
// backends (BadgerDB on disk, BadgerDB in memory for tests) to be used
// interchangeably.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the storage.VectorStore
// interface:
//
//	store, err := badger.NewVectorStore(backend, "medical_knowledge")
//
// Internal constructors may return concrete types since they are only used
// within the implementation package.
//
// # Failure Model
//
// Every backend failure, including context cancellation and deadlines, is
// reported as a *BackendError. Callers treat that class as recoverable and
// continue with lexical evidence only:
//
//	matches, err := store.Query(ctx, vector, 10)
//	if storage.IsBackendError(err) {
//	    // degrade
//	}
//
// # Thread Safety
//
// All VectorStore implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
