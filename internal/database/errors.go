package database

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a requested record does not exist.
var ErrNotFound = errors.New("database: not found")

// ErrPersistence is matched by every PersistenceError.
var ErrPersistence = errors.New("database: persistence failed")

// PersistenceError reports a failed write to the change store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *PersistenceError
	if errors.As(err, &existing) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
