package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/cost"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
data_dir: /var/lib/waypost
backend: sqlite
cost:
  base_table_cents: [500, 750, 1000]
  free_tier: 25
  per_member_cents: 2
  mode: static
  static_multiplier: 2.0
limits:
  lock_timeout: 250ms
progression:
  max_level: 50
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/waypost", cfg.DataDir)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, []int64{500, 750, 1000}, cfg.Cost.BaseTableCents)
	assert.Equal(t, 25, cfg.Cost.FreeTier)
	assert.Equal(t, cost.ModeStatic, cfg.Cost.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Limits.LockTimeout.Std())
	assert.Equal(t, 50, cfg.Progression.MaxLevel)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Limits.MaxProgressContributionCents, cfg.Limits.MaxProgressContributionCents)
	assert.Equal(t, Default().Progression.DefaultMemberCount, cfg.Progression.DefaultMemberCount)
}

func TestParse_RejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("data_dir: data\nbonus_field: 1\n"))
	require.Error(t, err)
}

func TestParse_RejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "backend: redis"},
		{"unknown mode", "cost:\n  mode: exponential"},
		{"negative free tier", "cost:\n  free_tier: -1"},
		{"zero base entry", "cost:\n  base_table_cents: [0, 100]"},
		{"zero max level", "progression:\n  max_level: 0"},
		{"malformed lock timeout", "limits:\n  lock_timeout: soon"},
		{"non-monotonic base table", "cost:\n  base_table_cents: [1000, 900]"},
		{"empty data dir", `data_dir: ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_EmptyDocumentReturnsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waypost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("progression:\n  max_level: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Progression.MaxLevel)
}

func TestConfig_CostParamsRoundTrip(t *testing.T) {
	cfg := Default()
	calc, err := cost.New(cfg.CostParams())
	require.NoError(t, err)

	// Level 1 at the free tier: the base requirement alone.
	assert.Equal(t, int64(1000), calc.RequiredCents(1, cfg.Cost.FreeTier))
}

func TestConfig_EngineConfig(t *testing.T) {
	cfg := Default()
	ec := cfg.EngineConfig()

	assert.Equal(t, cfg.Progression.MaxLevel, ec.MaxLevel)
	assert.Equal(t, cfg.Limits.MaxProgressContributionCents, ec.ProgressCeilingCents)
	assert.Equal(t, cfg.Limits.MaxRewardContributionCents, ec.RewardCeilingCents)
	assert.Equal(t, 5*time.Second, ec.LockTimeout)
}
