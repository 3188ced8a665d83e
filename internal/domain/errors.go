package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrCartNotFound indicates the remote cart id no longer resolves to a
	// live cart (expired, completed, or unknown server-side).
	ErrCartNotFound = errors.New("cart not found")

	// ErrLineNotSynced indicates a mutation targeted a line that has no
	// confirmed remote line id yet.
	ErrLineNotSynced = errors.New("line not synced with remote cart")
)
