package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwax12/newbotcursor/core/cache"
	coreconfig "github.com/bryanwax12/newbotcursor/core/config"
	tg "github.com/bryanwax12/newbotcursor/core/telegram"
	"github.com/bryanwax12/newbotcursor/internal/session"
)

func quiet() StorageHooks {
	return StorageHooks{LoggerInit: func(*coreconfig.Config) error { return nil }}
}

func testConfig(t *testing.T, store string) *Config {
	t.Helper()
	cfg := &Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Session.Store = store
	require.NoError(t, cfg.Normalize())
	return cfg
}

func TestOpenStorageMemory(t *testing.T) {
	st, err := OpenStorage(context.Background(), testConfig(t, "memory"), quiet())
	require.NoError(t, err)
	defer st.Close()

	assert.Nil(t, st.Infra.DB)
	n, err := st.Sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenStorageRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &Config{Redis: cache.Config{Addr: mr.Addr()}}
	cfg.Telegram.Token = "123:abc"
	cfg.Session.Store = "redis"
	require.NoError(t, cfg.Normalize())

	st, err := OpenStorage(context.Background(), cfg, quiet())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	fresh := session.New(7, "draft-1", "sender_name", time.Now())
	got, err := st.Sessions.CreateOrGet(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "draft-1", got.DraftID)
	assert.NotEmpty(t, mr.Keys())
}

func TestTelegramRunOptions(t *testing.T) {
	a, err := bootstrapWith(context.Background(), testConfig(t, "memory"), quiet())
	require.NoError(t, err)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", opts.Config.Telegram.Token)
	require.NotNil(t, opts.Registry)
	_, _, ok := opts.Registry.LookupCommand("/neworder")
	assert.True(t, ok)

	// commands, one callback route, text and document routes
	assert.Equal(t, len(opts.Registry.Commands())+3, len(opts.Routes))
	assert.NotEmpty(t, opts.Middlewares)

	require.NoError(t, opts.OnStart(context.Background(), tg.Runtime{}))
	require.NoError(t, opts.OnStop(context.Background(), tg.Runtime{}))
}
