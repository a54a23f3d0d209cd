package document

import "errors"

var (
	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict indicates a duplicate document id on create.
	ErrConflict = errors.New("document already exists")

	// ErrInvalidTransition indicates a status change the lifecycle state
	// machine does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")
)
