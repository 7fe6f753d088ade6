// Package storage
package storage

import (
	"context"

	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

// Driver defines the interface for persisting and retrieving tracked calls in
// a local storage backend.
type Driver interface {
	// Put stores a call. Storing a call whose ID already exists replaces it.
	Put(ctx context.Context, call *tracked.Call) error

	// Get retrieves a call by its ID.
	Get(ctx context.Context, id string) (*tracked.Call, error)

	// List returns all calls in the store ordered by start time, oldest first.
	List(ctx context.Context) ([]*tracked.Call, error)

	// Close closes the store and releases any resources.
	Close() error
}
