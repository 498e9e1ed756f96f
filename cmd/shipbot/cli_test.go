package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwax12/newbotcursor/core/buildinfo"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	root := newRootCmd()
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "shipbot "+buildinfo.Version)
}

func TestPurgeMemoryStore(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("session:\n  store: memory\n"), 0o600))

	out, err := executeCLI(t, "purge", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "purged 0 sessions\n", out)
}

func TestPurgeRejectsUnknownStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "etcd")
	_, err := executeCLI(t, "purge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session.store")
}

func TestMigrateNeedsDatabase(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("session:\n  store: memory\n"), 0o600))

	_, err := executeCLI(t, "migrate", "version", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database configured")
}

func TestConfigFlagWinsOverEnv(t *testing.T) {
	t.Setenv(configEnvVar, "/does/not/exist.yaml")
	opts := &rootOptions{configPath: "flag.yaml"}
	assert.Equal(t, "flag.yaml", opts.path())
	opts.configPath = ""
	assert.Equal(t, "/does/not/exist.yaml", opts.path())
}
