package entity

import "errors"

var (
	// ErrNotStarted is returned by mutating registry operations issued
	// before Start. Callers ahead of readiness degrade gracefully
	// instead of crashing.
	ErrNotStarted = errors.New("entity registry not started")

	// ErrUnknownType marks a record whose type has no registered factory.
	ErrUnknownType = errors.New("no factory registered for entity type")

	// ErrFactoryFailed marks a factory that rejected a record.
	ErrFactoryFailed = errors.New("entity construction failed")

	// ErrDuplicateType marks a second factory registration for a type.
	ErrDuplicateType = errors.New("factory already registered for entity type")
)
