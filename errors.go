package main

import (
	"errors"
	"fmt"
)

// TransientError marks a remote transformation failure that is worth
// retrying (rate limit, timeout, transport error, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a remote transformation failure that retrying cannot
// fix; it triggers the fallback path immediately.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func isTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationError is surfaced to the caller before any processing or
// logging is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func isValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError marks a log-append or profile-upsert failure. Callers
// still receive the already-computed result where the call shape allows.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func isPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
