// Package config loads and validates waypost configuration.
//
// Configuration is a YAML document checked twice: strict decoding rejects
// unknown fields, then unification against an embedded CUE schema rejects
// out-of-range values. Omitted fields fall back to defaults.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/waypost/waypost/internal/cost"
	"github.com/waypost/waypost/internal/engine"
)

//go:embed schema.cue
var schemaSource string

// Backend names a snapshot and event-log storage implementation.
type Backend string

const (
	// BackendFile stores per-entity JSONL event logs and JSON snapshots
	// in a directory.
	BackendFile Backend = "file"
	// BackendSQLite stores events and snapshots in a single SQLite
	// database file.
	BackendSQLite Backend = "sqlite"
)

// Duration wraps time.Duration for YAML documents, where durations are
// strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration document.
type Config struct {
	// DataDir is the storage location: the log directory for the file
	// backend, the parent of the database file for sqlite.
	DataDir string  `yaml:"data_dir"`
	Backend Backend `yaml:"backend"`

	Cost        Cost        `yaml:"cost"`
	Limits      Limits      `yaml:"limits"`
	Progression Progression `yaml:"progression"`
}

// Cost configures the goal-requirement calculator.
type Cost struct {
	BaseTableCents      []int64   `yaml:"base_table_cents"`
	FreeTier            int       `yaml:"free_tier"`
	PerMemberCents      int64     `yaml:"per_member_cents"`
	MaxDynamicCents     int64     `yaml:"max_dynamic_cents"`
	Mode                cost.Mode `yaml:"mode"`
	StaticMultiplier    float64   `yaml:"static_multiplier"`
	MultiplierMin       float64   `yaml:"multiplier_min"`
	MultiplierMax       float64   `yaml:"multiplier_max"`
	MinRequirementCents int64     `yaml:"min_requirement_cents"`
}

// Limits configures per-request validation and lock acquisition.
type Limits struct {
	MaxProgressContributionCents int64    `yaml:"max_progress_contribution_cents"`
	MaxRewardContributionCents   int64    `yaml:"max_reward_contribution_cents"`
	LockTimeout                  Duration `yaml:"lock_timeout"`
}

// Progression configures level bounds and bootstrap behavior.
type Progression struct {
	MaxLevel           int `yaml:"max_level"`
	DefaultMemberCount int `yaml:"default_member_count"`
}

// Default returns the built-in configuration: file backend under ./data,
// the standard dynamic cost tuning, and conservative request ceilings.
func Default() Config {
	return Config{
		DataDir: "data",
		Backend: BackendFile,
		Cost: Cost{
			BaseTableCents: []int64{
				1000, 1000, 1000, 1000, 1000, 1000, 1000,
				1050, 1050, 1050, 1050, 1050, 1050, 1050, 1050,
			},
			FreeTier:            10,
			PerMemberCents:      5,
			MaxDynamicCents:     500,
			Mode:                cost.ModeDynamic,
			StaticMultiplier:    1.0,
			MultiplierMin:       0.5,
			MultiplierMax:       3.0,
			MinRequirementCents: 100,
		},
		Limits: Limits{
			MaxProgressContributionCents: 500_000,
			MaxRewardContributionCents:   100_000,
			LockTimeout:                  Duration(5 * time.Second),
		},
		Progression: Progression{
			MaxLevel:           100,
			DefaultMemberCount: 0,
		},
	}
}

// Load reads, validates, and defaults the configuration at path.
// An empty path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse validates and defaults a YAML configuration document.
func Parse(raw []byte) (Config, error) {
	if err := validateSchema(raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// The schema bounds individual fields; cross-field rules live in the
	// calculator's own validation.
	if _, err := cost.New(cfg.CostParams()); err != nil {
		return Config{}, fmt.Errorf("invalid cost configuration: %w", err)
	}
	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("data_dir must not be empty")
	}
	return cfg, nil
}

// validateSchema unifies the document with the embedded #Config schema.
func validateSchema(raw []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		return nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup config schema: %w", err)
	}

	unified := def.Unify(ctx.Encode(doc))
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CostParams maps the cost section onto calculator parameters.
func (c Config) CostParams() cost.Params {
	return cost.Params{
		BaseTableCents:      c.Cost.BaseTableCents,
		FreeTier:            c.Cost.FreeTier,
		PerMemberCents:      c.Cost.PerMemberCents,
		MaxDynamicCents:     c.Cost.MaxDynamicCents,
		Mode:                c.Cost.Mode,
		StaticMultiplier:    c.Cost.StaticMultiplier,
		MultiplierMin:       c.Cost.MultiplierMin,
		MultiplierMax:       c.Cost.MultiplierMax,
		MinRequirementCents: c.Cost.MinRequirementCents,
	}
}

// EngineConfig maps the limits and progression sections onto the
// controller's configuration.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxLevel:             c.Progression.MaxLevel,
		ProgressCeilingCents: c.Limits.MaxProgressContributionCents,
		RewardCeilingCents:   c.Limits.MaxRewardContributionCents,
		DefaultMemberCount:   c.Progression.DefaultMemberCount,
		LockTimeout:          c.Limits.LockTimeout.Std(),
	}
}
