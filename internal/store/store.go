// Package store persists raw signals for ChainSignal. Scores are always
// recomputed on read, so implementations deal only in the signal envelope.
package store

import (
	"context"
	"errors"

	"github.com/nlowell/chainsignal/internal/signal"
)

// Common errors.
var (
	ErrNotFound = errors.New("signal not found")
	ErrEmptyID  = errors.New("signal id is required")
)

// Store is the persistence contract shared by the in-memory and Redis
// backends.
type Store interface {
	// Put inserts or replaces a signal by ID.
	Put(ctx context.Context, sig *signal.Signal) error

	// Get returns the signal with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*signal.Signal, error)

	// List returns all stored signals in no particular order.
	List(ctx context.Context) ([]*signal.Signal, error)

	// Delete removes a signal by ID, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored signals.
	Count(ctx context.Context) (int, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
