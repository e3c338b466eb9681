// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"visitas/internal/database"
)

// Open creates a SQLite database in the test's temp dir using the pure-Go
// driver and applies every migration. It is closed when the test ends.
func Open(t testing.TB) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "visitas_test.db")
	db, err := database.Open(database.NewPureGoSQLiteDialect(), database.DialectConfig{Path: path})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.RunMigrations(context.Background(), MigrationsDir(t)); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// MigrationsDir finds the repository's migrations directory by walking up
// from the working directory to the module root.
func MigrationsDir(t testing.TB) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not locate module root")
		}
		dir = parent
	}
}
