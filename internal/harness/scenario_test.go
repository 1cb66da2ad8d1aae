package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_DefaultsEntityID(t *testing.T) {
	path := writeScenario(t, `
name: minimal
description: smallest valid scenario
members: 5
steps:
  - contribute:
      amount_cents: 100
assertions:
  - type: leveled_up
    value: false
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "guild", scenario.EntityID)
}

func TestLoadScenario_RejectsUnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: has a misspelled section
steps:
  - contribute:
      amount_cents: 100
assertion:
  - type: leveled_up
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing name",
			"description: d\nsteps:\n  - reset: true\n",
			"name is required",
		},
		{
			"missing steps",
			"name: n\ndescription: d\n",
			"steps list is required",
		},
		{
			"empty step",
			"name: n\ndescription: d\nsteps:\n  - {}\n",
			"exactly one operation",
		},
		{
			"two operations in one step",
			"name: n\ndescription: d\nsteps:\n  - reset: true\n    set_members: 5\n",
			"exactly one operation",
		},
		{
			"non-positive contribution",
			"name: n\ndescription: d\nsteps:\n  - contribute:\n      amount_cents: 0\n",
			"amount_cents must be positive",
		},
		{
			"unknown assertion type",
			"name: n\ndescription: d\nsteps:\n  - reset: true\nassertions:\n  - type: sorcery\n",
			"unknown assertion type",
		},
		{
			"unknown final_state field",
			"name: n\ndescription: d\nsteps:\n  - reset: true\nassertions:\n  - type: final_state\n    expect:\n      charisma: 9\n",
			"unknown final_state field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
