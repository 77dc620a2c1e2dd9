// Package inmemorystore provides an ephemeral, thread-safe implementation of
// the stack.Store interface. It backs tests and single-process runs; a
// durable implementation would live behind the same interface.
package inmemorystore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zhangknight/heat/internal/stack"
)

type record struct {
	stack   *stack.Stack
	deleted bool
}

// Store keeps every stack record in memory. Deletion is soft: removed
// records stay addressable when callers explicitly ask for deleted stacks,
// mirroring how a database-backed store exposes show_deleted lookups.
type Store struct {
	mu      sync.RWMutex
	seq     int
	records map[string]*record
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]*record)}
}

// Save persists the stack, assigning an id on first save.
func (s *Store) Save(ctx context.Context, stk *stack.Stack) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := stk.ID()
	if id == "" {
		s.seq++
		id = fmt.Sprintf("stack-%04d", s.seq)
		stk.SetID(id)
	}
	if rec, ok := s.records[id]; ok {
		rec.stack = stk
	} else {
		s.records[id] = &record{stack: stk}
	}
	return id, nil
}

// Get returns the stack stored under id, honoring the soft-delete flag.
func (s *Store) Get(ctx context.Context, id string, showDeleted bool) (*stack.Stack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || (rec.deleted && !showDeleted) {
		return nil, fmt.Errorf("%w: %s", stack.ErrNotFound, id)
	}
	return rec.stack, nil
}

// Children returns the live stacks owned by the given stack id, ordered by
// id for determinism.
func (s *Store) Children(ctx context.Context, ownerID string) ([]*stack.Stack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*stack.Stack
	for _, rec := range s.records {
		if !rec.deleted && rec.stack.OwnerID() == ownerID {
			out = append(out, rec.stack)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Remove soft-deletes the stack stored under id.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", stack.ErrNotFound, id)
	}
	rec.deleted = true
	return nil
}
