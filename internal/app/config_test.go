package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL())
	assert.Equal(t, time.Minute, cfg.Session.PurgeInterval())
	assert.Equal(t, 3, cfg.Session.MaxCASAttempts)
	assert.Equal(t, 300, cfg.Debounce.IntervalMS)
	assert.Equal(t, 10, cfg.Templates.MaxPerUser)
	assert.False(t, cfg.HasDatabase())
}

func TestLoadConfigEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "from-yaml"
session:
  ttl_minutes: 30
database:
  host: db.local
  name: shipbot
`)
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("ORDER_PRICE_CENTS", "250")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 5*time.Minute, cfg.Session.TTL())
	assert.Equal(t, int64(250), cfg.Orders.PriceCents)
	assert.Equal(t, "postgres", cfg.Session.Store, "a configured database is the default store")
	assert.Equal(t, "5432", cfg.Database.Port)
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]string{
		"missing token":         "session:\n  store: memory\n",
		"unknown store":         "telegram:\n  token: x\nsession:\n  store: etcd\n",
		"postgres without db":   "telegram:\n  token: x\nsession:\n  store: postgres\n",
		"redis without addr":    "telegram:\n  token: x\nsession:\n  store: redis\n",
		"negative ttl":          "telegram:\n  token: x\nsession:\n  ttl_minutes: -1\n",
		"negative price":        "telegram:\n  token: x\norders:\n  price_cents: -5\n",
		"negative debounce":     "telegram:\n  token: x\ndebounce:\n  interval_ms: -1\n",
		"database without name": "telegram:\n  token: x\ndatabase:\n  host: db.local\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadStorageConfigSkipsTelegram(t *testing.T) {
	cfg, err := LoadStorageConfig(writeConfig(t, "session:\n  store: redis\nredis:\n  addr: localhost:6379\n"))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}
