// Package main is the entry point for the crud-express identity service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/razikuljoni/crud-express/internal/app"
)

// Version information set at build time.
var (
	commit = "unknown"
	date   = "unknown"
)

func main() {
	// Cancelled on SIGINT or SIGTERM; every subcommand observes it.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", app.Version, commit, date)

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
