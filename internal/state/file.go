// Package state persists notification bookkeeping between runs.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/feedwatch/feedwatch/internal/feed"
)

// FileStore keeps the state in a single JSON document on the local
// filesystem. There is exactly one writer per run, so no locking; writes
// are crash-consistent via a full-file replace (temp file + rename).
type FileStore struct {
	path string
}

// NewFileStore validates the target location and returns a store.
// The parent directory is created if missing.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the state document. A missing file yields a zero-valued state
// rather than an error; that is the first-run case.
func (s *FileStore) Load(_ context.Context) (*feed.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return feed.NewState(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	st := feed.NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	if st.LastNotified == nil {
		st.LastNotified = make(map[string]string)
	}
	return st, nil
}

// Save overwrites the whole document atomically: marshal, write a temp
// file next to the target, rename into place. A partial write never
// replaces the previous state.
func (s *FileStore) Save(_ context.Context, st *feed.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
