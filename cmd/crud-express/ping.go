package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/razikuljoni/crud-express/internal/app"
)

const defaultPingTimeout = 15 * time.Second

// NewPingCmd creates the ping subcommand.
func NewPingCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check the user directory is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			dir, err := app.OpenDirectory(ctx, cfg, nil, log)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").Wrap(err)
			}
			defer func() { _ = dir.Close(context.WithoutCancel(ctx)) }()

			if err := dir.Ping(ctx); err != nil {
				return oops.Code("DB_PING_FAILED").With("directory", dir.Driver()).Wrap(err)
			}

			cmd.Printf("%s directory reachable in %s\n", dir.Driver(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultPingTimeout, "connection timeout")

	return cmd
}
