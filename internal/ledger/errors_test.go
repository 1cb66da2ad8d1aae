package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestError_Error tests the error message formats.
func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "entity and seq",
			err:  &Error{Code: CodeStateCorruption, Message: "bad event", EntityID: "pet-1", Seq: 12},
			want: "STATE_CORRUPTION: bad event (entity=pet-1, seq=12)",
		},
		{
			name: "entity only",
			err:  NewValidationError("pet-1", "amount must be positive"),
			want: "VALIDATION: amount must be positive (entity=pet-1)",
		},
		{
			name: "bare",
			err:  &Error{Code: CodePersistence, Message: "write failed"},
			want: "PERSISTENCE: write failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// TestErrorPredicates tests the errors.As-based helpers against wrapped errors.
func TestErrorPredicates(t *testing.T) {
	validation := fmt.Errorf("apply: %w", NewValidationError("pet-1", "too large"))
	assert.True(t, IsValidation(validation))
	assert.False(t, IsLockTimeout(validation))

	timeout := fmt.Errorf("apply: %w", NewLockTimeoutError("pet-1"))
	assert.True(t, IsLockTimeout(timeout))
	assert.False(t, IsValidation(timeout))

	persistence := NewPersistenceError("pet-1", "append failed", errors.New("disk full"))
	assert.True(t, IsPersistence(persistence))

	corruption := NewCorruptionError("pet-1", "log unreadable", errors.New("eof"))
	assert.True(t, IsCorruption(corruption))

	assert.False(t, IsValidation(errors.New("plain")))
	assert.False(t, IsValidation(nil))
}

// TestError_Unwrap tests that the underlying cause is preserved.
func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError("pet-1", "append failed", cause)
	require.ErrorIs(t, err, cause)
}
