package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/waypost/waypost/internal/config"
	"github.com/waypost/waypost/internal/cost"
	"github.com/waypost/waypost/internal/engine"
	"github.com/waypost/waypost/internal/store"
	"github.com/waypost/waypost/internal/store/file"
	"github.com/waypost/waypost/internal/store/sqlite"
)

// sqliteFilename is the database file created under data_dir for the
// sqlite backend.
const sqliteFilename = "waypost.db"

// env wires a command to a configured engine. Close releases the store.
type env struct {
	cfg    config.Config
	store  store.Store
	engine *engine.Engine
	keys   engine.KeyGenerator
	out    *OutputFormatter
}

func (e *env) Close() error {
	return e.store.Close()
}

// openEnv loads configuration, opens the configured backend, and builds
// the engine. Callers must Close the returned env.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(opts.Verbose)

	var st store.Store
	switch cfg.Backend {
	case config.BackendFile:
		st, err = file.Open(cfg.DataDir, file.WithLogger(logger))
	case config.BackendSQLite:
		if err = os.MkdirAll(cfg.DataDir, 0o755); err == nil {
			st, err = sqlite.Open(filepath.Join(cfg.DataDir, sqliteFilename), sqlite.WithLogger(logger))
		}
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open storage", err)
	}

	calc, err := cost.New(cfg.CostParams())
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid cost configuration", err)
	}

	return &env{
		cfg:    cfg,
		store:  st,
		engine: engine.New(st, calc, cfg.EngineConfig(), engine.WithLogger(logger)),
		keys:   engine.UUIDv7Generator{},
		out: &OutputFormatter{
			Format:  opts.Format,
			Writer:  cmd.OutOrStdout(),
			Verbose: opts.Verbose,
		},
	}, nil
}

// newLogger builds the CLI logger. Diagnostics go to stderr so JSON output
// on stdout stays parseable.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
