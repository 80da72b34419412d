package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
)

// Databases written by the earlier single-file app have a users table with a
// plaintext/SHA-256 `password` column and nullable ticket columns. The
// upgrade runs around the init migration: version 1 moves those tables aside,
// version 2 creates the current schema, version 3 copies the rows across.
const (
	legacyUsersTable   = "legacy_users"
	legacyTicketsTable = "legacy_tickets"

	// legacyEmailDomain fills addresses the old app never stored.
	legacyEmailDomain = "@unknown.invalid"
)

func sqliteGoMigrations() []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1, &goose.GoFunc{RunTx: stashLegacyTables}, nil),
		goose.NewGoMigration(3, &goose.GoFunc{RunTx: importLegacyTables}, nil),
	}
}

func stashLegacyTables(ctx context.Context, tx *sql.Tx) error {
	cols, err := tableColumns(ctx, tx, "users")
	if err != nil {
		return err
	}
	if !cols["password"] || cols["password_hash"] {
		return nil
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE users RENAME TO "+legacyUsersTable); err != nil {
		return fmt.Errorf("stash legacy users: %w", err)
	}
	ticketCols, err := tableColumns(ctx, tx, "tickets")
	if err != nil {
		return err
	}
	if len(ticketCols) > 0 {
		if _, err := tx.ExecContext(ctx, "ALTER TABLE tickets RENAME TO "+legacyTicketsTable); err != nil {
			return fmt.Errorf("stash legacy tickets: %w", err)
		}
	}
	return nil
}

func importLegacyTables(ctx context.Context, tx *sql.Tx) error {
	userCols, err := tableColumns(ctx, tx, legacyUsersTable)
	if err != nil {
		return err
	}
	if len(userCols) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, name, email, password_hash, role, created_at)
		SELECT LOWER(TRIM(username)),
		       TRIM(username),
		       COALESCE(NULLIF(TRIM(email), ''), LOWER(TRIM(username)) || ?),
		       COALESCE(password, ''),
		       CASE WHEN role = 'admin' THEN 'admin' ELSE 'user' END,
		       ?
		FROM `+legacyUsersTable+`
		WHERE username IS NOT NULL AND TRIM(username) <> ''`,
		legacyEmailDomain, now); err != nil {
		return fmt.Errorf("import legacy users: %w", err)
	}

	ticketCols, err := tableColumns(ctx, tx, legacyTicketsTable)
	if err != nil {
		return err
	}
	if len(ticketCols) > 0 {
		// Ticket owners without an account get one that cannot log in.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, name, email, password_hash, role, created_at)
			SELECT owner, owner, owner || ?, '', 'user', ?
			FROM (SELECT DISTINCT LOWER(TRIM(COALESCE(name, ''))) AS owner FROM `+legacyTicketsTable+`)
			WHERE owner NOT IN (SELECT username FROM users)`,
			legacyEmailDomain, now); err != nil {
			return fmt.Errorf("import legacy ticket owners: %w", err)
		}

		// Only the oldest of identical Open submissions stays Open.
		if _, err := tx.ExecContext(ctx, `
			WITH src AS (
				SELECT id,
				       LOWER(TRIM(COALESCE(name, ''))) AS name,
				       COALESCE(email, '') AS email,
				       TRIM(COALESCE(subject, '')) AS subject,
				       TRIM(COALESCE(description, '')) AS description,
				       CASE WHEN status IN ('Open', 'Reopened', 'Resolved', 'Discarded') THEN status ELSE 'Open' END AS status,
				       COALESCE(NULLIF(created_at, ''), ?) AS created_at,
				       COALESCE(NULLIF(updated_at, ''), NULLIF(created_at, ''), ?) AS updated_at,
				       COALESCE(comments, '') AS comments
				FROM `+legacyTicketsTable+`
			)
			INSERT INTO tickets (id, name, email, subject, description, status, created_at, updated_at, comments)
			SELECT id, name, email, subject, description,
			       CASE WHEN status = 'Open' AND EXISTS (
			           SELECT 1 FROM src earlier
			           WHERE earlier.status = 'Open' AND earlier.id < src.id
			             AND earlier.name = src.name AND earlier.subject = src.subject
			             AND earlier.description = src.description
			       ) THEN 'Discarded' ELSE status END,
			       created_at, updated_at, comments
			FROM src`,
			now, now); err != nil {
			return fmt.Errorf("import legacy tickets: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+legacyTicketsTable); err != nil {
			return fmt.Errorf("drop legacy tickets: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+legacyUsersTable); err != nil {
		return fmt.Errorf("drop legacy users: %w", err)
	}
	return nil
}

// tableColumns returns the column names of table, or an empty set when the
// table does not exist.
func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
