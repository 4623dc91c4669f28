package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

// State is what survives between runs: the API token and the identity that owns it.
type State struct {
	Token  string       `json:"token,omitempty"`
	UserID string       `json:"user_id,omitempty"`
	User   *models.User `json:"user,omitempty"`
}

// Store persists session state.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// FileStore keeps the state in a JSON file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore stores the session at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the backing file.
func (f *FileStore) Path() string { return f.path }

// Load returns an empty state when the file does not exist yet.
func (f *FileStore) Load() (State, error) {
	var st State
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read session file: %w", err)
	}
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("decode session file: %w", err)
	}
	return st, nil
}

func (f *FileStore) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// MemoryStore keeps the state in memory only.
type MemoryStore struct {
	mu sync.Mutex
	st State
}

func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, nil
}

func (m *MemoryStore) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	return nil
}
