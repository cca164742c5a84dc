package worldmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrStoreUnavailable is returned when the persistent document cannot be
// read or parsed. Callers decide between retrying and
// default-initializing.
var ErrStoreUnavailable = errors.New("worldmodel: store unavailable")

// Store abstracts World Model persistence so tests can substitute an
// in-memory implementation.
type Store interface {
	// Load returns the current document.
	Load() (*Model, error)
	// Persist writes the document through to durable storage.
	Persist(m *Model) error
	// Mutate applies fn under the single-writer lock and persists the
	// result when fn succeeds.
	Mutate(fn func(m *Model) error) (*Model, error)
}

// FileStore persists the World Model as one pretty-printed JSON document.
// Concurrent readers are allowed; writers serialize on the mutex.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a store backed by path (conventionally
// data/world_model.json).
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and parses the document. A missing or malformed file yields
// ErrStoreUnavailable.
func (s *FileStore) Load() (*Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() (*Model, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreUnavailable, s.path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrStoreUnavailable, s.path, err)
	}
	if m.History == nil {
		m.History = map[string][]HistoryRecord{}
	}
	return &m, nil
}

// LoadOrInit loads the document, default-initializing and persisting a
// fresh one when the store is unavailable.
func (s *FileStore) LoadOrInit() (*Model, error) {
	m, err := s.Load()
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		return nil, err
	}
	m = Default()
	if err := s.Persist(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Persist writes the whole document, two-space indented UTF-8 JSON.
func (s *FileStore) Persist(m *Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(m)
}

func (s *FileStore) persistLocked(m *Model) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode world model: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write world model: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Mutate loads the document, applies fn and persists on success, all
// under the writer lock.
func (s *FileStore) Mutate(fn func(m *Model) error) (*Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	m.UpdatedAt = time.Now()
	if err := s.persistLocked(m); err != nil {
		return nil, err
	}
	return m, nil
}

// MemoryStore implements Store for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	model *Model
}

// NewMemoryStore seeds an in-memory store; a nil model starts from
// Default().
func NewMemoryStore(m *Model) *MemoryStore {
	if m == nil {
		m = Default()
	}
	return &MemoryStore{model: m}
}

func (s *MemoryStore) Load() (*Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneModel(s.model)
}

func (s *MemoryStore) Persist(m *Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone, err := cloneModel(m)
	if err != nil {
		return err
	}
	s.model = clone
	return nil
}

func (s *MemoryStore) Mutate(fn func(m *Model) error) (*Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone, err := cloneModel(s.model)
	if err != nil {
		return nil, err
	}
	if err := fn(clone); err != nil {
		return nil, err
	}
	clone.UpdatedAt = time.Now()
	s.model = clone
	result, err := cloneModel(clone)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// cloneModel deep-copies through JSON so callers never alias stored
// state.
func cloneModel(m *Model) (*Model, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var clone Model
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	if clone.History == nil {
		clone.History = map[string][]HistoryRecord{}
	}
	return &clone, nil
}
