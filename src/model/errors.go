package model

import "errors"

// Sentinel errors shared by the model and handler layers. Handlers translate
// these into HTTP statuses; everything else becomes a 500.
var (
	// ErrNotFound means no matching non-deleted row exists.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the operation is not valid for the row's current
	// lifecycle state, e.g. closing an already closed trade.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict means a unique constraint would be violated.
	ErrConflict = errors.New("conflict")
)
