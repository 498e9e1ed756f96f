package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := Config{Addr: mr.Addr()}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, 10, cfg.PoolSize)

	client, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnectUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), Config{Addr: addr, PoolSize: 1})
	assert.Error(t, err)
}

func TestNormalizeRequiresAddr(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Normalize())
}
