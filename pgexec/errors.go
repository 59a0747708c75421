// Package pgexec executes compiled SQL plans inside one constraint-deferred
// transaction and classifies database failures into a closed taxonomy.
package pgexec

import (
	"errors"
	"fmt"
	"strings"
)

// Cause is a member of the closed error taxonomy derived from the
// database's SQLSTATE code.
type Cause string

const (
	// ConnectionDoesNotExist marks a connection-class failure.
	ConnectionDoesNotExist Cause = "connection-does-not-exist"
	// StringDataTooLong marks a value exceeding its column's length bound.
	StringDataTooLong Cause = "string-data-too-long"
	// InvalidEncoding marks input outside the database encoding.
	InvalidEncoding Cause = "invalid-encoding"
	// InvalidTextRepresentation marks a malformed literal, e.g. a bad uuid.
	InvalidTextRepresentation Cause = "invalid-text-representation"
	// NotNullViolation marks a NULL written to a NOT NULL column.
	NotNullViolation Cause = "not-null-violation"
	// UniqueViolation marks a duplicate value on a unique index.
	UniqueViolation Cause = "unique-violation"
	// CheckViolation marks a failed CHECK constraint.
	CheckViolation Cause = "check-violation"
	// SerializationFailure marks a transaction conflict; callers may retry.
	SerializationFailure Cause = "serialization-failure"
	// Timeout marks a statement that exceeded its allotted time.
	Timeout Cause = "timeout"
	// Unknown marks any unrecognized code. Still wrapped, never swallowed.
	Unknown Cause = "unknown"
)

// SQLSTATE codes this engine distinguishes.
const (
	stateConnectionDoesNotExist    = "08003"
	stateStringDataRightTruncation = "22001"
	stateCharacterNotInRepertoire  = "22021"
	stateInvalidTextRepresentation = "22P02"
	stateNotNullViolation          = "23502"
	stateUniqueViolation           = "23505"
	stateCheckViolation            = "23514"
	stateSerializationFailure      = "40001"
	stateQueryCanceled             = "57014"
)

// sqlStateError is implemented by lib/pq and pgx driver errors.
type sqlStateError interface {
	SQLState() string
}

// errorCoder is implemented by driver errors exposing the code as a method.
type errorCoder interface {
	Code() string
}

// SQLState extracts the SQLSTATE code from the error chain, or "".
func SQLState(err error) string {
	if e, ok := asError[sqlStateError](err); ok {
		return e.SQLState()
	}
	if e, ok := asError[errorCoder](err); ok {
		return e.Code()
	}
	return ""
}

// Classify maps the error's SQLSTATE code into the taxonomy.
func Classify(err error) Cause {
	state := SQLState(err)
	switch state {
	case stateStringDataRightTruncation:
		return StringDataTooLong
	case stateCharacterNotInRepertoire:
		return InvalidEncoding
	case stateInvalidTextRepresentation:
		return InvalidTextRepresentation
	case stateNotNullViolation:
		return NotNullViolation
	case stateUniqueViolation:
		return UniqueViolation
	case stateCheckViolation:
		return CheckViolation
	case stateSerializationFailure:
		return SerializationFailure
	case stateQueryCanceled:
		return Timeout
	case stateConnectionDoesNotExist:
		return ConnectionDoesNotExist
	}
	// Any other class 08 code is still a connection failure.
	if strings.HasPrefix(state, "08") {
		return ConnectionDoesNotExist
	}
	return Unknown
}

// SaveError is the single wrapped error type surfaced by the engine for
// database failures, regardless of operation. The raw driver error is kept
// as the traceable root cause but never exposed as the error type itself.
type SaveError struct {
	// Cause is the classified taxonomy member.
	Cause Cause
	// SQLState is the raw code, "" when the driver exposed none.
	SQLState string
	msg      string
	err      error
}

// Error returns the error string.
func (e *SaveError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("pgexec: save failed (cause=%s, sqlstate=%s): %s", e.Cause, e.SQLState, e.msg)
	}
	return fmt.Sprintf("pgexec: save failed (cause=%s): %s", e.Cause, e.msg)
}

// Unwrap returns the root cause.
func (e *SaveError) Unwrap() error { return e.err }

// NewSaveError classifies err and wraps it.
func NewSaveError(err error) *SaveError {
	return &SaveError{
		Cause:    Classify(err),
		SQLState: SQLState(err),
		msg:      err.Error(),
		err:      err,
	}
}

// IsSaveError returns true if the error is a SaveError.
func IsSaveError(err error) bool {
	if err == nil {
		return false
	}
	var e *SaveError
	return errors.As(err, &e)
}

// CauseOf returns the classified cause of a SaveError, or Unknown for any
// other error.
func CauseOf(err error) Cause {
	var e *SaveError
	if errors.As(err, &e) {
		return e.Cause
	}
	return Unknown
}

// asError walks the unwrap chain looking for an error implementing T.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}
