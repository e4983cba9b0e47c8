// Package migration applies the embedded SQL schema migrations in order,
// recording each applied file in the schema_migrations ledger so startup is
// idempotent.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration is one schema step, named after its file.
type Migration struct {
	Name string
	SQL  string
}

// Runner applies pending migrations against a database handle.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a migration runner for the given database.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// Load returns the embedded migrations sorted by file name. The numeric
// prefix of each file fixes the application order.
func Load() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("migration: failed to read embedded files: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := migrationFiles.ReadFile("sql/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("migration: failed to read %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Name: entry.Name(), SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Name < migrations[j].Name })
	return migrations, nil
}

// Apply runs every migration that is not yet recorded in schema_migrations.
// Each migration executes inside its own transaction together with its ledger
// entry, so a failed step leaves the database at the previous version.
func (r *Runner) Apply(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("migration: failed to create ledger: %w", err)
	}

	applied, err := r.appliedNames(ctx)
	if err != nil {
		return err
	}

	migrations, err := Load()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.Name]; ok {
			continue
		}
		if err := r.applyOne(ctx, m); err != nil {
			return fmt.Errorf("migration: %s failed: %w", m.Name, err)
		}
	}
	return nil
}

func (r *Runner) appliedNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("migration: failed to read ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("migration: failed to scan ledger: %w", err)
		}
		applied[name] = struct{}{}
	}
	return applied, rows.Err()
}

func (r *Runner) applyOne(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)",
		m.Name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}
