package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/razikuljoni/crud-express/internal/app"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Connect to the user directory, ensure its indexes or migrations, and
serve the /api routes until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Info("starting identity service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("directory", cfg.DirectoryDriver),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		return oops.Code("STARTUP_FAILED").Wrap(err)
	}

	// Run blocks until the command context is cancelled.
	if err := application.Run(cmd.Context()); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		return err
	}

	log.Info("identity service stopped")
	return nil
}
