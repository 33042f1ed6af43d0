package core

import (
	"errors"
)

var (
	// ErrNotFound is returned by reverse lookups on handles the component never issued.
	ErrNotFound = errors.New("not found")
	// ErrLogic signals a release or free of something the component does not track.
	ErrLogic = errors.New("logic error")
	// ErrResourceExhausted is returned when a backend or a table reached a hard limit.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrPreconditionViolation is returned when an operation is called in a state that cannot serve it.
	ErrPreconditionViolation = errors.New("precondition violation")
	// ErrInvalidConfiguration is returned at initialization for configurations that can never work.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
