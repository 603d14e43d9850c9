package state

import (
	"context"

	"github.com/feedwatch/feedwatch/internal/feed"
)

// MemoryStore holds state in memory. Used by tests and dry runs.
type MemoryStore struct {
	state *feed.State
	saves int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the held state, or a fresh one if nothing was saved yet.
func (s *MemoryStore) Load(_ context.Context) (*feed.State, error) {
	if s.state == nil {
		return feed.NewState(), nil
	}
	return s.state, nil
}

// Save retains the state and counts the call.
func (s *MemoryStore) Save(_ context.Context, st *feed.State) error {
	s.state = st
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *MemoryStore) Saves() int {
	return s.saves
}
