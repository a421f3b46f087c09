package task

import "errors"

var (
	// ErrNotFound is returned when a referenced task does not exist.
	ErrNotFound = errors.New("task: not found")
	// ErrInvalidInput is returned for rejected create or update parameters.
	ErrInvalidInput = errors.New("task: invalid input")
	// ErrInvalidPrecondition is returned when a chain edit cannot be made
	// from the task's current state, e.g. generating a repetitive successor
	// without activate and deadline. The whole mutation is rolled back.
	ErrInvalidPrecondition = errors.New("task: invalid precondition")
)
