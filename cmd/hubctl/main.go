// Package main is the AutomateHub operator CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/automatehub/automatehub/internal/cmd/hubctl"
	"github.com/automatehub/automatehub/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := hubctl.Execute(ctx); err != nil {
		config.Exitf("hubctl: %v", err)
	}
}
