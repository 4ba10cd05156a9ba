// Package main starts the AutomateHub API server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	hubcmd "github.com/automatehub/automatehub/internal/cmd/hub"
	"github.com/automatehub/automatehub/internal/platform/config"
)

func main() {
	cfg, err := hubcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := hubcmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
