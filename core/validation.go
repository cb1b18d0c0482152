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


package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be 0
//   - Type must not be empty
//   - Content must not be empty or whitespace only
//
// Title and Source are free form. Source is defaulted by NormalizeDocument.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ID == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrZeroID)
	}

	if doc.Type == "" {
		return fmt.Errorf("%w: id %d: %w", ErrInvalidDocument, doc.ID, ErrEmptyType)
	}

	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("%w: id %d: %w", ErrInvalidDocument, doc.ID, ErrEmptyContent)
	}

	return nil
}

// NormalizeDocument fills optional fields with their defaults.
func NormalizeDocument(doc *Document) {
	if doc.Source == "" {
		doc.Source = DefaultSource
	}
}

// ValidateCorpus validates every document and rejects duplicate ids.
// It stops at the first failure so a corpus is accepted or rejected as a whole.
func ValidateCorpus(docs []Document) error {
	seen := make(map[ID]struct{}, len(docs))
	for i := range docs {
		if err := ValidateDocument(&docs[i]); err != nil {
			return err
		}
		if _, ok := seen[docs[i].ID]; ok {
			return fmt.Errorf("%w: %w: %d", ErrInvalidDocument, ErrDuplicateID, docs[i].ID)
		}
		seen[docs[i].ID] = struct{}{}
	}
	return nil
}
