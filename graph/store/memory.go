package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory implementation of Store[S].
//
// Designed for testing, prototyping, and single-process deployments where
// durability across restarts is not required. Despite being volatile it
// enforces the full version-checked append contract, so engine code
// exercised against it behaves identically on the database-backed stores.
//
// MemStore is safe for concurrent use.
type MemStore[S any] struct {
	mu      sync.RWMutex
	threads map[string][]Checkpoint[S] // threadID -> checkpoints ordered by Seq
}

// NewMemStore creates an empty in-memory checkpoint store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		threads: make(map[string][]Checkpoint[S]),
	}
}

// Latest returns the highest-sequence checkpoint for the thread.
func (m *MemStore[S]) Latest(_ context.Context, threadID string) (Checkpoint[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := m.threads[threadID]
	if len(cps) == 0 {
		var zero Checkpoint[S]
		return zero, ErrNotFound
	}
	return cps[len(cps)-1], nil
}

// Append writes cp if cp.Seq continues the thread's sequence exactly.
func (m *MemStore[S]) Append(_ context.Context, threadID string, cp Checkpoint[S]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cps := m.threads[threadID]
	latest := 0
	if len(cps) > 0 {
		latest = cps[len(cps)-1].Seq
	}
	if cp.Seq != latest+1 {
		return ErrVersionConflict
	}

	m.threads[threadID] = append(cps, cp)
	return nil
}

// History returns the thread's checkpoints in ascending sequence order.
func (m *MemStore[S]) History(_ context.Context, threadID string) ([]Checkpoint[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := m.threads[threadID]
	out := make([]Checkpoint[S], len(cps))
	copy(out, cps)
	return out, nil
}
