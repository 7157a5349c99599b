package domain

import "errors"

var (
	// ErrNotFound is returned when a selector or lookup names a group,
	// author or post the store does not know.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable wraps any failure or timeout of a backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
)
