package ledger

import (
	"errors"
	"fmt"
)

// Error represents a failure surfaced by the progression engine.
//
// Error categories:
//   - Validation: rejected input, no state change
//   - Lock timeout: entity lock not acquired within the bound (retryable)
//   - Persistence: durable write failed, contribution unconfirmed
//   - State corruption: stored state inconsistent with the log and the log
//     itself is unreadable (self-healable inconsistencies never surface)
//
// Duplicate submissions are NOT errors: they resolve to
// ApplyResult{Duplicate: true}.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EntityID identifies the affected entity.
	EntityID string

	// Seq identifies the event sequence involved, if any.
	Seq uint64

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeValidation indicates rejected input with no side effect.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeLockTimeout indicates the entity lock was not acquired within
	// the configured bound. The operation was not applied and is retryable.
	CodeLockTimeout ErrorCode = "LOCK_TIMEOUT"

	// CodePersistence indicates a durable write failed. If the event append
	// failed the contribution was not applied; if only the snapshot write
	// failed the next read self-heals from the log.
	CodePersistence ErrorCode = "PERSISTENCE"

	// CodeStateCorruption indicates the event history itself is unreadable.
	// Requires operator action; never silently guessed around.
	CodeStateCorruption ErrorCode = "STATE_CORRUPTION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.EntityID != "" && e.Seq != 0:
		return fmt.Sprintf("%s: %s (entity=%s, seq=%d)", e.Code, e.Message, e.EntityID, e.Seq)
	case e.EntityID != "":
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates an Error for rejected input.
func NewValidationError(entityID, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, EntityID: entityID}
}

// NewLockTimeoutError creates an Error for a lock acquisition timeout.
func NewLockTimeoutError(entityID string) *Error {
	return &Error{
		Code:     CodeLockTimeout,
		Message:  "entity lock not acquired within bound",
		EntityID: entityID,
	}
}

// NewPersistenceError creates an Error for a failed durable write.
func NewPersistenceError(entityID, message string, err error) *Error {
	return &Error{Code: CodePersistence, Message: message, EntityID: entityID, Err: err}
}

// NewCorruptionError creates an Error for unreadable stored state.
func NewCorruptionError(entityID, message string, err error) *Error {
	return &Error{Code: CodeStateCorruption, Message: message, EntityID: entityID, Err: err}
}

// IsValidation returns true if the error is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsLockTimeout returns true if the error is a lock timeout.
// Uses errors.As to handle wrapped errors.
func IsLockTimeout(err error) bool {
	return hasCode(err, CodeLockTimeout)
}

// IsPersistence returns true if the error is a persistence failure.
// Uses errors.As to handle wrapped errors.
func IsPersistence(err error) bool {
	return hasCode(err, CodePersistence)
}

// IsCorruption returns true if the error is a state corruption failure.
// Uses errors.As to handle wrapped errors.
func IsCorruption(err error) bool {
	return hasCode(err, CodeStateCorruption)
}

func hasCode(err error, code ErrorCode) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}
