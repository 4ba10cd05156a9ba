// Package main serves the marketplace discovery tools over MCP stdio.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	hubmcpcmd "github.com/automatehub/automatehub/internal/cmd/hubmcp"
	"github.com/automatehub/automatehub/internal/platform/config"
)

func main() {
	cfg, err := hubmcpcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := hubmcpcmd.Run(ctx, cfg); err != nil {
		config.Exitf("mcp server: %v", err)
	}
}
