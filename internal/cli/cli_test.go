package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/ledger"
)

// writeTestConfig points the CLI at an isolated data directory with the
// small cost tuning used across these tests.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "waypost.yaml")
	cfg := fmt.Sprintf(`data_dir: %s
backend: file
cost:
  base_table_cents: [1000, 1050, 1100]
  free_tier: 10
  per_member_cents: 5
progression:
  default_member_count: 20
`, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestCLI_ApplyAndState(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "500", "--key", "k1")
	require.NoError(t, err)
	assert.Contains(t, out, "progress:    500 / 1050 cents")

	out, err = runCLI(t, cfg, "state", "guild-a")
	require.NoError(t, err)
	assert.Contains(t, out, "level:       1")
	assert.Contains(t, out, "cumulative:  500 cents")
}

func TestCLI_ApplyLevelUp(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "500", "--key", "k1")
	require.NoError(t, err)

	out, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "600", "--key", "k2")
	require.NoError(t, err)
	assert.Contains(t, out, "level up! now level 2")
	assert.Contains(t, out, "progress:    50 /")
}

func TestCLI_ApplyDuplicateKey(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "500", "--key", "k1")
	require.NoError(t, err)

	out, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "500", "--key", "k1")
	require.NoError(t, err)
	assert.Contains(t, out, "duplicate key, state unchanged")
	assert.Contains(t, out, "cumulative:  500 cents")
}

func TestCLI_ApplyJSONFormat(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, cfg, "--format", "json", "apply", "guild-a", "--amount-cents", "500", "--key", "k1")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Snapshot  ledger.Snapshot `json:"snapshot"`
			LeveledUp bool            `json:"leveled_up"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(500), resp.Data.Snapshot.ProgressCents)
	assert.False(t, resp.Data.LeveledUp)
}

func TestCLI_ApplyRejectsBadAmount(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "-5", "--key", "k1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCLI_Trace(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "1050", "--key", "k1")
	require.NoError(t, err)

	out, err := runCLI(t, cfg, "trace", "guild-a")
	require.NoError(t, err)
	assert.Contains(t, out, string(ledger.TypeContributionAdded))
	assert.Contains(t, out, string(ledger.TypeLevelUpCommitted))

	out, err = runCLI(t, cfg, "trace", "guild-a", "--type", string(ledger.TypeLevelUpCommitted))
	require.NoError(t, err)
	assert.Contains(t, out, string(ledger.TypeLevelUpCommitted))
	assert.NotContains(t, out, string(ledger.TypeContributionAdded))
}

func TestCLI_TraceNormalizesEntityID(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, cfg, "apply", "Guild Alpha", "--amount-cents", "500", "--key", "k1")
	require.NoError(t, err)

	// Both spellings address the same normalized history.
	out, err := runCLI(t, cfg, "trace", "Guild Alpha")
	require.NoError(t, err)
	assert.Contains(t, out, string(ledger.TypeContributionAdded))

	out, err = runCLI(t, cfg, "trace", "Guild-Alpha")
	require.NoError(t, err)
	assert.Contains(t, out, string(ledger.TypeContributionAdded))
}

func TestCLI_MembersAndDecay(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, cfg, "members", "guild-a", "110")
	require.NoError(t, err)
	assert.Contains(t, out, "members:     110")

	_, err = runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "500", "--key", "k1", "--reward")
	require.NoError(t, err)

	out, err = runCLI(t, cfg, "decay", "guild-a", "--amount-cents", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "reward:      300 cents")
}

func TestCLI_VerifyAndRebuild(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "500", "--key", "k1")
	require.NoError(t, err)

	out, err := runCLI(t, cfg, "verify", "guild-a")
	require.NoError(t, err)
	assert.Contains(t, out, "consistent")

	out, err = runCLI(t, cfg, "rebuild", "guild-a")
	require.NoError(t, err)
	assert.Contains(t, out, "progress:    500 /")
}

func TestCLI_ResetRequiresConfirmation(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, cfg, "apply", "guild-a", "--amount-cents", "500", "--key", "k1")
	require.NoError(t, err)

	_, err = runCLI(t, cfg, "reset", "guild-a")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := runCLI(t, cfg, "reset", "guild-a", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "reset guild-a")

	out, err = runCLI(t, cfg, "trace", "guild-a")
	require.NoError(t, err)
	assert.Contains(t, out, "no events")
}

func TestCLI_Check(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, cfg, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "backend:   file")
	assert.Contains(t, out, "goal requirements:")
}

func TestCLI_CheckRunsScenarioFiles(t *testing.T) {
	cfg := writeTestConfig(t)
	dir := t.TempDir()

	passing := filepath.Join(dir, "passing.yaml")
	require.NoError(t, os.WriteFile(passing, []byte(`
name: check-passing
description: a scenario the check command should report as ok
members: 20
steps:
  - contribute:
      amount_cents: 500
assertions:
  - type: final_state
    expect:
      progress_cents: 500
`), 0o644))

	out, err := runCLI(t, cfg, "check", passing)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario check-passing: ok")

	failing := filepath.Join(dir, "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(`
name: check-failing
description: a scenario with a wrong expectation
members: 20
steps:
  - contribute:
      amount_cents: 500
assertions:
  - type: final_state
    expect:
      level: 9
`), 0o644))

	out, err = runCLI(t, cfg, "check", failing)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "scenario check-failing: FAILED")

	_, err = runCLI(t, cfg, "check", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCLI_CheckRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: redis\n"), 0o644))

	_, err := runCLI(t, path, "check")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
