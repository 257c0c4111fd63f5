package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/razikuljoni/crud-express/internal/app"
)

const defaultMigrateTimeout = 2 * time.Minute

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create directory indexes or apply schema migrations",
		Long: `For the mongo directory, ensure the unique username and email indexes.
For the postgres directory, apply pending migrations. Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			dir, err := app.OpenDirectory(ctx, cfg, nil, log)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").Wrap(err)
			}
			defer func() { _ = dir.Close(context.WithoutCancel(ctx)) }()

			if err := dir.Migrate(ctx); err != nil {
				return oops.Code("MIGRATION_FAILED").With("directory", dir.Driver()).Wrap(err)
			}

			cmd.Printf("%s directory is up to date\n", dir.Driver())
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrateTimeout, "timeout for the whole migration")

	return cmd
}
