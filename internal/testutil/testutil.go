// Package testutil provides shared helpers for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/bryanwax12/newbotcursor/core/database"
)

// DatabaseDSNEnv names the variable that enables Postgres integration tests.
const DatabaseDSNEnv = "SHIPBOT_TEST_DATABASE_DSN"

// MigrationsDir returns the repository's migrations directory.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// Postgres opens the integration database, applies migrations and closes the
// handle when the test ends. It skips the test when DatabaseDSNEnv is unset.
func Postgres(t testing.TB) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(DatabaseDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping Postgres integration test", DatabaseDSNEnv)
	}
	if err := database.Migrate(dsn, MigrationsDir()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
