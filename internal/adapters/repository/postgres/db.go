package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Open connects and pings the database.
func Open(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// ApplyMigrations executes every up migration in name order. The statements
// are idempotent, so running them on an initialized database is a no-op.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		if err := execMigrationFile(ctx, db, name); err != nil {
			return err
		}
	}
	return nil
}

// ApplyMigration executes the single migration file whose name ends with
// migrationName followed by ".sql", e.g. "create_refresh_tokens_table.up".
func ApplyMigration(ctx context.Context, db *sql.DB, migrationName string) (string, error) {
	pattern, err := regexp.Compile(fmt.Sprintf(`^.*%s\.sql$`, regexp.QuoteMeta(migrationName)))
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() || !pattern.MatchString(e.Name()) {
			continue
		}
		return e.Name(), execMigrationFile(ctx, db, "migrations/"+e.Name())
	}
	return "", fmt.Errorf("migration file not found")
}

func execMigrationFile(ctx context.Context, db *sql.DB, path string) error {
	content, err := migrationFiles.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", strings.TrimPrefix(path, "migrations/"), err)
	}
	return nil
}
