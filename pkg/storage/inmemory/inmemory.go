// Package inmemory provides a map-backed storage driver, used for tests and
// for short-lived processes that only need calls for their own lifetime.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/ollamatrace/pkg/storage"
	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of calls
	mu sync.RWMutex

	// calls is the in memory map of calls keyed by call ID
	calls map[string]*tracked.Call
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		calls: make(map[string]*tracked.Call),
	}
}

// Put stores a call, replacing any call with the same ID.
func (s *Driver) Put(_ context.Context, call *tracked.Call) error {
	if call == nil {
		return storage.ErrNilCall
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[call.ID] = call
	return nil
}

// Get retrieves a call by its ID.
func (s *Driver) Get(_ context.Context, id string) (*tracked.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.calls[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return call, nil
}

// List returns all calls in the store, oldest first.
func (s *Driver) List(_ context.Context) ([]*tracked.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calls := make([]*tracked.Call, 0, len(s.calls))
	for _, call := range s.calls {
		calls = append(calls, call)
	}

	sort.Slice(calls, func(i, j int) bool {
		return calls[i].StartedAt.Before(calls[j].StartedAt)
	})

	return calls, nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
