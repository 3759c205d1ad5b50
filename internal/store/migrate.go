package store

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY
)`

// RunMigrations applies the embedded SQL files in name order, skipping
// versions already recorded in schema_migrations. Each file runs in its
// own transaction together with its bookkeeping row.
func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	lookup, record := "SELECT 1 FROM schema_migrations WHERE version = ?", "INSERT INTO schema_migrations (version) VALUES (?)"
	if driver == DriverPostgres {
		lookup = strings.Replace(lookup, "?", "$1", 1)
		record = strings.Replace(record, "?", "$1", 1)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version := strings.TrimSuffix(e.Name(), ".sql")

		var one int
		err := db.QueryRowContext(ctx, lookup, version).Scan(&one)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return err
		}

		sqlBytes, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		if err != nil {
			return err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, record, version); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
