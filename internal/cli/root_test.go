package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "waypost", cmd.Use)
	assert.Contains(t, cmd.Long, "appended event")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"apply", "state", "trace", "members", "decay", "rebuild", "verify", "reset", "check"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestApplyCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	applyCmd, _, err := cmd.Find([]string{"apply"})
	require.NoError(t, err)

	amountFlag := applyCmd.Flags().Lookup("amount-cents")
	require.NotNil(t, amountFlag)
	assert.Equal(t, "0", amountFlag.DefValue)

	keyFlag := applyCmd.Flags().Lookup("key")
	require.NotNil(t, keyFlag)
	assert.Equal(t, "", keyFlag.DefValue)

	rewardFlag := applyCmd.Flags().Lookup("reward")
	require.NotNil(t, rewardFlag)
	assert.Equal(t, "false", rewardFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "check"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
