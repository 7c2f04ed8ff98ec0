package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for drafts that do not exist or belong to
	// another user. The two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks transport failures caused by missing permissions in
	// the target chat.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a session was changed by another writer
	// since it was read.
	ErrConflict = errors.New("conflict")
)

// StorageError reports a failure of the durable store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
