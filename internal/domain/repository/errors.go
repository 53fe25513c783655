package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks run parameters rejected before the loop starts.
	ErrInvalidConfig = errors.New("invalid run config")

	// ErrNotFound marks a historical load that matched no snapshots.
	ErrNotFound = errors.New("no snapshots found")
)

// QueryError wraps a failed query execution. Recoverable per error policy.
type QueryError struct {
	Dataset string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Dataset, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// PersistError wraps a failed snapshot write. Handled under the same policy
// as QueryError.
type PersistError struct {
	Dataset string
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Dataset, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// HookError wraps a failed transform hook; it fails the tick like a query error.
type HookError struct {
	Dataset string
	Index   int
	Err     error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %d on %s: %v", e.Index, e.Dataset, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }
