// Package hubmcp parses MCP command flags and serves the discovery tools over
// stdio.
package hubmcp

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/automatehub/automatehub/internal/platform/cmd"
	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/platform/logging"
	"github.com/automatehub/automatehub/internal/services/hub/app"
	hubmcp "github.com/automatehub/automatehub/internal/services/hub/mcp"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath   string `env:"AUTOMATEHUB_DB_PATH"   envDefault:"data/automatehub.db"`
	LogLevel string `env:"AUTOMATEHUB_LOG_LEVEL" envDefault:"info"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the MCP tools until ctx ends. Logs go to stderr; stdout carries
// the protocol.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(entrypoint.ServiceMCP, cfg.LogLevel, logging.FormatJSON)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		store, err := app.OpenStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		services := app.NewServices(store, nil, events.Nop{}, logger, app.ServiceOptions{})
		server, err := hubmcp.New(services.Experts, services.Projects, logger)
		if err != nil {
			return fmt.Errorf("build mcp server: %w", err)
		}
		return server.Serve(ctx)
	})
}
