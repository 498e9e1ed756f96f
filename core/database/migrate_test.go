package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_orders.up.sql",
		"000001_sessions.up.sql",
		"000001_sessions.down.sql",
		"README.md",
	} {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	assert.Equal(t, []string{"000001_sessions.up.sql", "000002_orders.up.sql"}, upFiles(dir))
	assert.Nil(t, upFiles(filepath.Join(dir, "missing")))
}

func TestBetweenSelectsAppliedRange(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql", "junk.up.sql"}
	assert.Equal(t, []string{"000002_b.up.sql", "000003_c.up.sql"}, between(files, 1, 3))
	assert.Empty(t, between(files, 3, 3))
	assert.Equal(t, uint64(2), fileVersion("000002_b.up.sql"))
	assert.Zero(t, fileVersion("junk.up.sql"))
}
