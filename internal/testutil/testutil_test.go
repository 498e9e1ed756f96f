package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationsDirHasFiles(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join(MigrationsDir(), "*.up.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no up migrations in %s", MigrationsDir())
	}
	for _, up := range matches {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		if _, err := os.Stat(down); err != nil {
			t.Errorf("missing down migration for %s", filepath.Base(up))
		}
	}
}
