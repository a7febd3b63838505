package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/and161185/lexes/internal/config"
	"github.com/and161185/lexes/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (LEXES_DSN)")

	sub := func(use, short string, run func(ctx context.Context, dsn string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				target := dsn
				if target == "" {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					target = cfg.DSN
				}
				return run(cmd.Context(), target)
			},
		}
	}
	cmd.AddCommand(
		sub("up", "Apply all pending migrations", migrate.Up),
		sub("down", "Roll back the latest migration", migrate.Down),
		sub("status", "Show applied and pending migrations", migrate.Status),
	)
	return cmd
}
