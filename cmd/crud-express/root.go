package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/razikuljoni/crud-express/internal/app"
	"github.com/razikuljoni/crud-express/internal/config"
	"github.com/razikuljoni/crud-express/pkg/logger"
)

// NewRootCmd creates the root command. Without a subcommand it serves HTTP.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crud-express",
		Short: "crud-express identity service",
		Long: `crud-express registers users, authenticates them with JSON Web Tokens
and guards the user directory behind a bearer token gate.

Configuration is read from environment variables (PORT, DIRECTORY_DRIVER,
MONGODB_URI, JWT_SECRET, ...).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPingCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

// loadConfig reads the environment and builds the service logger writing to
// the command's output.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		return nil, nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, logger.NewWithFormat(app.ServiceName, cfg.LogLevel, cfg.LogFormat, cmd.OutOrStdout()), nil
}
