package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwax12/newbotcursor/core/cache"
	coreconfig "github.com/bryanwax12/newbotcursor/core/config"
	coredatabase "github.com/bryanwax12/newbotcursor/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func lazyDB(t *testing.T) func(coredatabase.Config) (*sqlx.DB, error) {
	return func(cfg coredatabase.Config) (*sqlx.DB, error) {
		// sqlx.Open does not dial, so no server is needed.
		db, err := sqlx.Open("postgres", cfg.URL())
		require.NoError(t, err)
		return db, nil
	}
}

func TestRunWithoutStorage(t *testing.T) {
	res, err := Run(context.Background(), Options{Config: &coreconfig.Config{}, LoggerInit: noLogger})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.Nil(t, res.Redis)
	assert.NoError(t, res.Close())
}

func TestRunConnectsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Redis:      &cache.Config{Addr: mr.Addr(), PoolSize: 2},
		LoggerInit: noLogger,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Redis)
	require.NoError(t, res.Redis.Ping(context.Background()).Err())
	assert.NoError(t, res.Close())
}

func TestRunDatabaseAndMigrations(t *testing.T) {
	db := &coredatabase.Config{Host: "localhost", Port: "5432", Name: "shipbot"}
	var migrated bool
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   db,
		LoggerInit: noLogger,
		Connect:    lazyDB(t),
		Migrate:    func(coredatabase.Config) error { migrated = true; return nil },
	})
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.NotNil(t, res.DB)
	assert.NoError(t, res.Close())
}

func TestRunFailures(t *testing.T) {
	boom := errors.New("boom")
	db := &coredatabase.Config{Host: "localhost", Name: "shipbot"}

	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return boom },
	})
	assert.ErrorIs(t, err, boom)

	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   db,
		LoggerInit: noLogger,
		Connect:    lazyDB(t),
		Migrate:    func(coredatabase.Config) error { return boom },
	})
	assert.ErrorIs(t, err, boom)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Redis:      &cache.Config{Addr: addr, PoolSize: 1},
		LoggerInit: noLogger,
	})
	assert.Error(t, err)
}
