package goals

import (
	"errors"
	"fmt"
)

// ErrNotFound covers both a missing row and a row owned by someone else,
// so callers cannot probe for other users' ids.
var ErrNotFound = errors.New("not found")

// ValidationError is bad client input; its message is safe to show.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

var ErrEmptyDecomposition = &ValidationError{Msg: "decomposition produced no sub-goals"}

// StorageError wraps a database failure. Transactions are rolled back
// before it is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
