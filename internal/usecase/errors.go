package usecase

import (
	"errors"
	"fmt"

	"channel-assistant/internal/domain"
)

type ErrorCode string

const (
	ErrorValidation  ErrorCode = "VALIDATION"
	ErrorResolution  ErrorCode = "RESOLUTION"
	ErrorRateLimited ErrorCode = "RATE_LIMITED"
	ErrorUpstream    ErrorCode = "UPSTREAM"
	ErrorStorage     ErrorCode = "STORAGE"
	ErrorConflict    ErrorCode = "CONFLICT"
	ErrorInternal    ErrorCode = "INTERNAL"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// aiError classifies a failed AI call.
func aiError(reason string, err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, reason, err)
	}
	return newError(ErrorUpstream, reason, err)
}

func storageError(reason string, err error) *Error {
	return newError(ErrorStorage, reason, err)
}

// sessionError classifies a failed session write. A lost race is not a
// storage failure: the session is intact, only this update was dropped.
func sessionError(err error) *Error {
	if errors.Is(err, domain.ErrConflict) {
		return newError(ErrorConflict, "session_conflict", err)
	}
	return storageError("session_write", err)
}

// errorCode returns the code of err, treating unclassified store failures as
// STORAGE and everything else as INTERNAL.
func errorCode(err error) ErrorCode {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	if errors.Is(err, domain.ErrConflict) {
		return ErrorConflict
	}
	var se *domain.StorageError
	if errors.As(err, &se) {
		return ErrorStorage
	}
	return ErrorInternal
}
