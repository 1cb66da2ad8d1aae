package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/ledger"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"result": "success"}, func(io.Writer) {
		t.Fatal("text renderer must not run in json mode")
	})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Success(nil, func(w io.Writer) {
		io.WriteString(w, "done\n")
	})
	require.NoError(t, err)
	assert.Equal(t, "done\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("VALIDATION", "amount must be positive"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION", resp.Error.Code)
	assert.Equal(t, "amount must be positive", resp.Error.Message)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(io.ErrUnexpectedEOF))
}

func TestLedgerExit_MapsErrorCodes(t *testing.T) {
	validation := ledgerExit(ledger.NewValidationError("guild-a", "amount must be positive"))
	assert.Equal(t, ExitCommandError, validation.Code)
	assert.Equal(t, "VALIDATION", validation.Message)

	timeout := ledgerExit(ledger.NewLockTimeoutError("guild-a"))
	assert.Equal(t, ExitFailure, timeout.Code)
	assert.Equal(t, "LOCK_TIMEOUT", timeout.Message)

	plain := ledgerExit(io.ErrUnexpectedEOF)
	assert.Equal(t, ExitFailure, plain.Code)
}

func TestWriteSnapshot(t *testing.T) {
	buf := &bytes.Buffer{}
	writeSnapshot(buf, ledger.Snapshot{
		EntityID:      "guild-a",
		Level:         2,
		ProgressCents: 50,
		GoalCents:     1050,
	})

	out := buf.String()
	assert.Contains(t, out, "entity:      guild-a")
	assert.Contains(t, out, "level:       2")
	assert.Contains(t, out, "progress:    50 / 1050 cents")
}
