package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/waypost/waypost/internal/ledger"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (lock timeout, persistence, drift detected)
	ExitCommandError = 2 // Command error (bad flags, invalid config, rejected request)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ledgerExit maps a ledger error onto an exit error, keeping the typed
// error code visible in the message. Validation rejections are command
// errors; everything else is an operation failure worth retrying.
func ledgerExit(err error) *ExitError {
	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		code := ExitFailure
		if lerr.Code == ledger.CodeValidation {
			code = ExitCommandError
		}
		return &ExitError{Code: code, Message: string(lerr.Code), Err: err}
	}
	return &ExitError{Code: ExitFailure, Message: "operation failed", Err: err}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success outputs a successful result in the configured format. The text
// renderer is used for the text format; JSON marshals data as-is.
func (f *OutputFormatter) Success(data any, text func(io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	text(f.Writer)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return nil
}

// writeSnapshot renders a snapshot for humans.
func writeSnapshot(w io.Writer, snap ledger.Snapshot) {
	fmt.Fprintf(w, "entity:      %s\n", snap.EntityID)
	fmt.Fprintf(w, "level:       %d\n", snap.Level)
	fmt.Fprintf(w, "progress:    %d / %d cents\n", snap.ProgressCents, snap.GoalCents)
	fmt.Fprintf(w, "reward:      %d cents\n", snap.RewardCents)
	fmt.Fprintf(w, "cumulative:  %d cents\n", snap.CumulativeCents)
	fmt.Fprintf(w, "members:     %d\n", snap.MemberCount)
	fmt.Fprintf(w, "goal opened: %s\n", snap.GoalStartedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(w, "head seq:    %d\n", snap.LastAppliedSeq)
}
