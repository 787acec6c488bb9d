package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/archive"
	"github.com/nvandessel/macrosim/internal/config"
	"github.com/nvandessel/macrosim/internal/logging"
	"github.com/nvandessel/macrosim/internal/simulation"
	"github.com/nvandessel/macrosim/internal/store"
)

// session carries what every command needs: configuration, the stderr
// logger and the optional run trace.
type session struct {
	cfg    *config.MacrosimConfig
	logger *slog.Logger
	trace  *logging.RunTrace
	root   string
}

// newSession loads <root>/.env, then the configuration, and builds the
// logger. Variables already present in the environment win over .env.
func newSession(cmd *cobra.Command) (*session, error) {
	root, _ := cmd.Flags().GetString("root")
	if root == "" {
		root = "."
	}
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &session{
		cfg:    cfg,
		logger: logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr()),
		root:   root,
	}
	if dir, err := config.Dir(); err == nil {
		s.trace = logging.NewRunTrace(dir, cfg.Logging.Level)
	}
	return s, nil
}

// Close releases the run trace.
func (s *session) Close() {
	s.trace.Close()
}

// simOptions returns the simulation options shared by every run.
func (s *session) simOptions() []simulation.Option {
	return []simulation.Option{
		simulation.WithLogger(s.logger),
		simulation.WithTrace(s.trace),
	}
}

// dbPath resolves the run database: the flag when given, then the
// configuration, then ~/.macrosim/runs.db.
func (s *session) dbPath(cmd *cobra.Command) (string, error) {
	if f := cmd.Flags().Lookup("db-path"); f != nil && f.Value.String() != "" {
		return f.Value.String(), nil
	}
	if s.cfg.Store.Path != "" {
		return s.cfg.Store.Path, nil
	}
	return store.DefaultDBPath()
}

// openStore opens the run database, creating its directory on first use.
func (s *session) openStore(cmd *cobra.Command) (*store.RunStore, error) {
	path, err := s.dbPath(cmd)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureDir(path); err != nil {
		return nil, err
	}
	runs, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return runs, nil
}

// archiveDir returns the configured archive directory or the default.
func (s *session) archiveDir() (string, error) {
	if s.cfg.Output.ArchiveDir != "" {
		return s.cfg.Output.ArchiveDir, nil
	}
	return archive.DefaultDir()
}

// signalContext returns a context cancelled on interrupt, so a long run
// stops between iterations instead of being killed mid-write.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
