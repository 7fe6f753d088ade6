package storage

import "errors"

// ErrNilCall is returned when a nil call is passed to Put.
var ErrNilCall = errors.New("cannot store nil call")

// NotFoundError is returned when a call doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "call not found"
	}

	return "call not found: " + e.ID
}
