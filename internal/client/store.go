package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/iliyamo/storefront-session/internal/model"
)

// Identity is the non-secret description of the signed-in account.  It is
// the only account data the agent persists.
type Identity struct {
	ID       uint64 `json:"id"`
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// State is what survives a restart of the agent: who is signed in, plus the
// cart and favorites collected while signed out.  Tokens are never part of
// it.
type State struct {
	Identity  *Identity             `json:"identity,omitempty"`
	Cart      []model.AnonymousItem `json:"cart,omitempty"`
	Favorites []uint64              `json:"favorites,omitempty"`
}

func (s State) anonymous() model.AnonymousState {
	return model.AnonymousState{Cart: s.Cart, Favorites: s.Favorites}
}

// Store persists State.  Load on a store that was never saved returns the
// zero State.
type Store interface {
	Load() (State, error)
	Save(State) error
	Clear() error
}

// MemoryStore keeps State in memory only.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.state), nil
}

func (m *MemoryStore) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = clone(s)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
	return nil
}

// FileStore keeps State as a JSON file readable only by its owner.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (f *FileStore) Load() (State, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return s, nil
}

// Save replaces the file through a rename so a crash never leaves a
// half-written state behind.
func (f *FileStore) Save(s State) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}

func clone(s State) State {
	out := State{
		Cart:      append([]model.AnonymousItem(nil), s.Cart...),
		Favorites: append([]uint64(nil), s.Favorites...),
	}
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	return out
}
