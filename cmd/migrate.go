package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"court-notifier/config"
	"court-notifier/logger"
	"court-notifier/storage"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel)

			ctx := context.Background()
			pg, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
