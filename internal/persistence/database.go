package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/config"
)

// Dialect identifies the SQL flavour behind a Database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Database is the single ticket store handle shared by all repositories.
type Database struct {
	DB      *sql.DB
	Dialect Dialect

	postgres *Postgres
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Database, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, cfg.BusyTimeoutMS, logger)
	case config.DriverPostgres:
		pg, err := NewPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &Database{DB: pg.SQLDB(), Dialect: DialectPostgres, postgres: pg}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Rebind rewrites `?` placeholders into the dialect's positional form.
func (d *Database) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Ping verifies the backend is reachable.
func (d *Database) Ping(ctx context.Context) error {
	if d == nil || d.DB == nil {
		return errors.New("database not configured")
	}
	return d.DB.PingContext(ctx)
}

// Close releases the handle and any underlying pool.
func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	err := d.DB.Close()
	d.postgres.Close()
	return err
}
