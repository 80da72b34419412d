package persistence

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

func (d *Database) migrationProvider() (*goose.Provider, error) {
	dialect := goose.DialectSQLite3
	dir := "migrations/sqlite"
	opts := []goose.ProviderOption{goose.WithGoMigrations(sqliteGoMigrations()...)}
	if d.Dialect == DialectPostgres {
		dialect = goose.DialectPostgres
		dir = "migrations/postgres"
		opts = nil
	}
	fsys, err := fs.Sub(migrationFiles, dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, d.DB, fsys, opts...)
}

// RunMigrations applies every pending embedded migration for the dialect.
func RunMigrations(ctx context.Context, d *Database, logger *zap.Logger) error {
	if d == nil || d.DB == nil {
		logger.Warn("no database available; skipping migrations")
		return nil
	}

	provider, err := d.migrationProvider()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, res := range results {
		logger.Info("applied migration",
			zap.String("file", res.Source.Path),
			zap.Duration("took", res.Duration))
	}

	logger.Info("migrations applied", zap.Int("count", len(results)))
	return nil
}

// SchemaVersion reports the latest applied migration version.
func SchemaVersion(ctx context.Context, d *Database) (int64, error) {
	provider, err := d.migrationProvider()
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
