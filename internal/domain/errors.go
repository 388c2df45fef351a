package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every caller mistake (missing id, term, bucket).
	// Validation errors are raised before any network call and never retried.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyID indicates no item id could be resolved from a request.
	ErrEmptyID = validation("empty id")
	// ErrNoTerm indicates a move target without a term.
	ErrNoTerm = validation("no term to move")
	// ErrNoBucket indicates a move target without a destination status.
	ErrNoBucket = validation("no bucket to move")
	// ErrNothingToUndo indicates Undo was called on an empty undo stack.
	ErrNothingToUndo = validation("nothing to undo")
	// ErrNoSyncID indicates a sync job response without a job id.
	ErrNoSyncID = validation("no sync id")
	// ErrObjectName indicates a container was configured without an object name.
	ErrObjectName = validation("object name must be specified")

	// ErrSuperseded marks a list request that was cancelled because a newer
	// one was issued. It is swallowed by the fetch coordinator.
	ErrSuperseded = errors.New("request superseded")

	// ErrSyncFailed indicates the sync job reported an unrecognized status.
	ErrSyncFailed = errors.New("sync error")
	// ErrSyncTimeout indicates the sync job did not finish within the attempt cap.
	ErrSyncTimeout = errors.New("sync timed out")
)

type validationError struct {
	msg string
}

func validation(msg string) error {
	return &validationError{msg: msg}
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

// IsValidation reports whether err is a caller mistake.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// TransportError describes a failed network call.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }
