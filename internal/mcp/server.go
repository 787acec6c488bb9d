// Package mcp provides an MCP (Model Context Protocol) server that lets
// agents run macrosim simulations and browse stored runs.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/macrosim/internal/logging"
	"github.com/nvandessel/macrosim/internal/ratelimit"
	"github.com/nvandessel/macrosim/internal/store"
	"github.com/nvandessel/macrosim/internal/table"
)

// Server wraps the MCP SDK server and provides macrosim tools.
type Server struct {
	server       *sdk.Server
	root         string
	store        *store.RunStore
	audit        *AuditLogger
	toolLimiters ratelimit.ToolLimiters
	logger       *slog.Logger
	workers      int
	csv          table.CSVOptions
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "macrosim")
	Version string // Server version
	Root    string // Project root; relative output paths resolve here

	// DBPath is the run database. Empty disables saving and macrosim_runs.
	DBPath string

	// Workers bounds parallel runs. 0 uses every CPU.
	Workers int

	// CSV configures tables written with a .csv or .tsv extension.
	CSV table.CSVOptions

	// Logger receives operational logs; nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with macrosim tools.
func NewServer(cfg *Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		root:         cfg.Root,
		audit:        NewAuditLogger(cfg.Root),
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
		workers:      cfg.Workers,
		csv:          cfg.CSV,
	}

	if cfg.DBPath != "" {
		if err := store.EnsureDir(cfg.DBPath); err != nil {
			s.audit.Close()
			return nil, err
		}
		runs, err := store.Open(cfg.DBPath)
		if err != nil {
			s.audit.Close()
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		s.store = runs
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server listening on stdio", "root", s.root)
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close closes the run store and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			firstErr = err
		}
		s.store = nil
	}
	if err := s.audit.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
