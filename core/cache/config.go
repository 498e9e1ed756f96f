// Package cache connects the shared Redis client.
package cache

import (
	"fmt"
	"strings"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	PoolSize int    `yaml:"pool_size" envconfig:"REDIS_POOL_SIZE"`
}

// Normalize fills defaults and rejects incomplete settings.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	return nil
}
