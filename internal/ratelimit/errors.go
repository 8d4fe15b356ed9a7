package ratelimit

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
	ErrInvalidWindow      = errors.New("window duration must be positive")
	ErrStorageRequired    = errors.New("storage is required")

	// ErrCorruptedState matches a persisted record that could not be decoded.
	ErrCorruptedState = errors.New("corrupted rate limit state")
	// ErrPersistenceUnavailable matches a failed read or write against the storage medium.
	ErrPersistenceUnavailable = errors.New("rate limit persistence unavailable")
)

// CorruptedStateError describes a persisted record that was discarded.
type CorruptedStateError struct {
	Key string
	Err error
}

func (e *CorruptedStateError) Error() string {
	return fmt.Sprintf("corrupted rate limit state under %q: %v", e.Key, e.Err)
}

func (e *CorruptedStateError) Unwrap() []error {
	return []error{ErrCorruptedState, e.Err}
}

// PersistenceError describes a storage operation that failed.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("rate limit storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceUnavailable, e.Err}
}

// Diagnostic kinds, used as metric labels and event fields.
const (
	KindCorruptedState         = "corrupted_state"
	KindPersistenceUnavailable = "persistence_unavailable"
	KindUnknown                = "unknown"
)

// Kind classifies a diagnostic error delivered to a reporter or observer.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrCorruptedState):
		return KindCorruptedState
	case errors.Is(err, ErrPersistenceUnavailable):
		return KindPersistenceUnavailable
	default:
		return KindUnknown
	}
}
