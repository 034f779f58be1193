package store

import (
	"context"
	"sync"

	"github.com/nlowell/chainsignal/internal/signal"
)

// Memory is an in-process Store for single-node deployments and tests.
type Memory struct {
	mu      sync.RWMutex
	signals map[string]*signal.Signal
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		signals: make(map[string]*signal.Signal),
	}
}

// Put inserts or replaces a signal. Copies are shallow; callers must not
// mutate nested delta maps after storing.
func (m *Memory) Put(ctx context.Context, sig *signal.Signal) error {
	if sig == nil || sig.ID == "" {
		return ErrEmptyID
	}

	cp := *sig

	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[cp.ID] = &cp
	return nil
}

// Get returns a copy of the signal with the given ID.
func (m *Memory) Get(ctx context.Context, id string) (*signal.Signal, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sig, ok := m.signals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sig
	return &cp, nil
}

// List returns copies of all stored signals.
func (m *Memory) List(ctx context.Context) ([]*signal.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*signal.Signal, 0, len(m.signals))
	for _, sig := range m.signals {
		cp := *sig
		out = append(out, &cp)
	}
	return out, nil
}

// Delete removes a signal by ID.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.signals[id]; !ok {
		return ErrNotFound
	}
	delete(m.signals, id)
	return nil
}

// Count returns the number of stored signals.
func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.signals), nil
}

// Ping always succeeds for the in-memory backend.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}
