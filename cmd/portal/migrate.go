package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/config"
	"github.com/spec-kit/ticket-portal/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  `Apply every pending schema migration for the configured database driver.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, db *persistence.Database, logger *zap.Logger) error {
				return persistence.RunMigrations(ctx, db, logger)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, db *persistence.Database, _ *zap.Logger) error {
				version, err := persistence.SchemaVersion(ctx, db)
				if err != nil {
					return fmt.Errorf("read schema version: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema version: %d\n", db.Dialect, version)
				return nil
			})
		},
	})

	return cmd
}

func withDatabase(ctx context.Context, fn func(context.Context, *config.Config, *persistence.Database, *zap.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := persistence.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	return fn(ctx, cfg, db, logger)
}
