package main

import (
	"context"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/razikuljoni/crud-express/internal/app"
)

const defaultSeedTimeout = 5 * time.Minute

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register users from a JSON file",
		Long: `Reads a JSON array of registration bodies and registers each user.
Records that fail validation or whose username or email already exists are
skipped, so the command can be re-run with the same file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.file, "file", "f", "", "path to the JSON seed file")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for the whole seed run")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, sc *seedConfig) error {
	f, err := os.Open(sc.file)
	if err != nil {
		return oops.Code("SEED_FILE_INVALID").With("file", sc.file).Wrap(err)
	}
	defer f.Close()

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sc.timeout)
	defer cancel()

	dir, err := app.OpenDirectory(ctx, cfg, nil, log)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer func() { _ = dir.Close(context.WithoutCancel(ctx)) }()

	if err := dir.Migrate(ctx); err != nil {
		return oops.Code("MIGRATION_FAILED").With("directory", dir.Driver()).Wrap(err)
	}

	users, _, err := app.NewUserService(cfg, dir.Users, nil, nil, log)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	res, err := app.Seed(ctx, users, f, log)
	if err != nil {
		return oops.Code("SEED_FAILED").With("file", sc.file).Wrap(err)
	}

	cmd.Printf("created %d, skipped %d existing, %d invalid\n", res.Created, res.Duplicates, res.Invalid)
	return nil
}
