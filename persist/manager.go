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


package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/lexical"
)

const (
	// formatVersion is the first byte of every artifact.
	formatVersion byte = 1

	currentFile     = "CURRENT"
	documentsPrefix = "documents-"
	lexicalPrefix   = "lexical-"
	artifactSuffix  = ".mus"
)

// Snapshot is a loaded document table and the lexical index restored from it.
type Snapshot struct {
	Generation uint64
	Documents  []core.Document
	Index      *lexical.Index
}

// Manager owns a snapshot directory.
type Manager struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewManager creates the snapshot directory if needed.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("persist: directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Manager{
		dir:    dir,
		logger: slog.Default().With("component", "persist"),
	}, nil
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

func artifactName(prefix string, gen uint64) string {
	return prefix + strconv.FormatUint(gen, 10) + artifactSuffix
}

// Save writes docs and index as the next generation and makes it current.
// docs must be the document table index was built from.
func (m *Manager) Save(docs []core.Document, index *lexical.Index) error {
	if len(docs) != index.Len() {
		return fmt.Errorf("persist: %d documents but index holds %d", len(docs), index.Len())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	gen, err := m.currentGeneration()
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		// A damaged CURRENT is replaced by this save.
		m.logger.Warn("ignoring unreadable snapshot pointer", "err", err)
	}
	gen++

	docBytes := make([]byte, core.DocumentsMUS.Size(docs))
	core.DocumentsMUS.Marshal(docs, docBytes)

	if err := m.writeFile(artifactName(documentsPrefix, gen), docBytes); err != nil {
		return err
	}
	if err := m.writeFile(artifactName(lexicalPrefix, gen), index.MarshalState()); err != nil {
		return err
	}
	if err := m.swapCurrent(gen); err != nil {
		return err
	}

	m.removeStale(gen)
	m.logger.Debug("snapshot saved", "generation", gen, "documents", len(docs))
	return nil
}

// writeFile writes a versioned artifact and syncs it to disk.
func (m *Manager) writeFile(name string, payload []byte) error {
	f, err := os.Create(filepath.Join(m.dir, name))
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte{formatVersion}); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m *Manager) swapCurrent(gen uint64) error {
	tmp := filepath.Join(m.dir, currentFile+".tmp")
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(gen, 10)+"\n"), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(m.dir, currentFile))
}

// removeStale deletes artifacts of other generations. Failures are logged only.
func (m *Manager) removeStale(keep uint64) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.logger.Warn("failed to list snapshot directory", "err", err)
		return
	}
	keepDocs := artifactName(documentsPrefix, keep)
	keepLex := artifactName(lexicalPrefix, keep)
	for _, entry := range entries {
		name := entry.Name()
		if name == keepDocs || name == keepLex || !strings.HasSuffix(name, artifactSuffix) {
			continue
		}
		if !strings.HasPrefix(name, documentsPrefix) && !strings.HasPrefix(name, lexicalPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
			m.logger.Warn("failed to remove stale artifact", "file", name, "err", err)
		}
	}
}

func (m *Manager) currentGeneration() (uint64, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, currentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNoSnapshot
	}
	if err != nil {
		return 0, err
	}
	gen, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s: %w", ErrCorruptSnapshot, currentFile, err)
	}
	return gen, nil
}

// Load reads the current snapshot. It returns ErrNoSnapshot when there is
// no complete snapshot and ErrCorruptSnapshot when one cannot be decoded.
func (m *Manager) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen, err := m.currentGeneration()
	if err != nil {
		return nil, err
	}

	docBytes, err := m.readFile(artifactName(documentsPrefix, gen))
	if err != nil {
		return nil, err
	}
	state, err := m.readFile(artifactName(lexicalPrefix, gen))
	if err != nil {
		return nil, err
	}

	docs, index, err := decode(docBytes, state)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Generation: gen,
		Documents:  docs,
		Index:      index,
	}, nil
}

// decode rebuilds the document table and lexical index from artifact bodies.
// Any decoder panic is reported as ErrCorruptSnapshot.
func decode(docBytes, state []byte) (docs []core.Document, index *lexical.Index, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs, index = nil, nil
			err = fmt.Errorf("%w: %v", ErrCorruptSnapshot, r)
		}
	}()

	docs, _, err = core.DocumentsMUS.Unmarshal(docBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: documents: %w", ErrCorruptSnapshot, err)
	}
	index, err = lexical.Restore(state, docs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	return docs, index, nil
}

// readFile reads an artifact and strips its version byte.
func (m *Manager) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: missing %s", ErrNoSnapshot, name)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrCorruptSnapshot, name)
	}
	if data[0] != formatVersion {
		return nil, fmt.Errorf("%w: %s has format version %d", ErrCorruptSnapshot, name, data[0])
	}
	return data[1:], nil
}
