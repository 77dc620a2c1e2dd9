package stack

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no stack exists under the requested
// id, and by Load when the backing record has gone missing.
var ErrNotFound = errors.New("stack not found")

// Store is the persistence boundary for stacks. The engine only ever talks
// to it through this interface; durability, serialization and cross-process
// concurrency are the implementation's concern.
type Store interface {
	// Save persists the stack, assigning and returning a new id when the
	// stack has none yet.
	Save(ctx context.Context, s *Stack) (string, error)
	// Get returns the stack stored under id. Soft-deleted stacks are only
	// returned when showDeleted is set. Missing ids yield ErrNotFound.
	Get(ctx context.Context, id string, showDeleted bool) (*Stack, error)
	// Children returns the live stacks whose owner is the given stack id.
	Children(ctx context.Context, ownerID string) ([]*Stack, error)
	// Remove soft-deletes the stack stored under id.
	Remove(ctx context.Context, id string) error
}

// Load fetches a stack by id from the store. A backing id that resolves to
// nothing is an ErrNotFound, wrapped with the id for diagnosability.
func Load(ctx context.Context, store Store, id string, showDeleted bool) (*Stack, error) {
	s, err := store.Get(ctx, id, showDeleted)
	if err != nil {
		return nil, err
	}
	return s, nil
}
