package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanwax12/newbotcursor/core/cache"
	coreconfig "github.com/bryanwax12/newbotcursor/core/config"
	coredatabase "github.com/bryanwax12/newbotcursor/core/database"
	"github.com/bryanwax12/newbotcursor/internal/debounce"
	"github.com/bryanwax12/newbotcursor/internal/flow"
	"github.com/bryanwax12/newbotcursor/internal/session"
	"github.com/bryanwax12/newbotcursor/internal/templates"
)

// SessionConfig selects and tunes the session store.
type SessionConfig struct {
	Store                string `yaml:"store" envconfig:"SESSION_STORE"`
	TTLMinutes           int    `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	PurgeIntervalSeconds int    `yaml:"purge_interval_seconds" envconfig:"SESSION_PURGE_INTERVAL_SECONDS"`
	MaxCASAttempts       int    `yaml:"max_cas_attempts" envconfig:"SESSION_MAX_CAS_ATTEMPTS"`
}

// TTL returns the inactivity window.
func (c SessionConfig) TTL() time.Duration { return time.Duration(c.TTLMinutes) * time.Minute }

// PurgeInterval returns the sweeper period.
func (c SessionConfig) PurgeInterval() time.Duration {
	return time.Duration(c.PurgeIntervalSeconds) * time.Second
}

type DebounceConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"DEBOUNCE_INTERVAL_MS"`
}

type TemplatesConfig struct {
	MaxPerUser int `yaml:"max_per_user" envconfig:"TEMPLATES_MAX_PER_USER"`
}

type OrdersConfig struct {
	// PriceCents is charged from the user balance on confirm. Zero makes
	// orders free.
	PriceCents int64 `yaml:"price_cents" envconfig:"ORDER_PRICE_CENTS"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Redis     cache.Config        `yaml:"redis"`
	Session   SessionConfig       `yaml:"session"`
	Debounce  DebounceConfig      `yaml:"debounce"`
	Templates TemplatesConfig     `yaml:"templates"`
	Orders    OrdersConfig        `yaml:"orders"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// HasDatabase reports whether database settings are present.
func (c *Config) HasDatabase() bool { return strings.TrimSpace(c.Database.Host) != "" }

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStorageConfig is LoadConfig without the Telegram checks, for commands
// that only touch storage.
func LoadStorageConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalizeApp(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the core and application sections and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	return c.normalizeApp()
}

func (c *Config) normalizeApp() error {
	s := &c.Session
	s.Store = strings.ToLower(strings.TrimSpace(s.Store))
	if s.Store == "" {
		s.Store = string(session.StoreTypeMemory)
		if c.HasDatabase() {
			s.Store = string(session.StoreTypePostgres)
		}
	}
	switch session.StoreType(s.Store) {
	case session.StoreTypeMemory:
	case session.StoreTypePostgres:
		if !c.HasDatabase() {
			return fmt.Errorf("session.store %q needs database settings", s.Store)
		}
	case session.StoreTypeRedis:
		if err := c.Redis.Normalize(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid session.store %q; allowed: memory, postgres, redis", s.Store)
	}
	if s.TTLMinutes < 0 || s.PurgeIntervalSeconds < 0 || s.MaxCASAttempts < 0 {
		return fmt.Errorf("session settings must be >= 0")
	}
	if s.TTLMinutes == 0 {
		s.TTLMinutes = int(session.DefaultTTL / time.Minute)
	}
	if s.PurgeIntervalSeconds == 0 {
		s.PurgeIntervalSeconds = int(session.DefaultPurgeInterval / time.Second)
	}
	if s.MaxCASAttempts == 0 {
		s.MaxCASAttempts = flow.DefaultMaxAttempts
	}

	if c.Debounce.IntervalMS < 0 {
		return fmt.Errorf("debounce.interval_ms must be >= 0")
	}
	if c.Debounce.IntervalMS == 0 {
		c.Debounce.IntervalMS = int(debounce.DefaultInterval / time.Millisecond)
	}
	if c.Templates.MaxPerUser <= 0 {
		c.Templates.MaxPerUser = templates.DefaultMaxPerUser
	}
	if c.Orders.PriceCents < 0 {
		return fmt.Errorf("orders.price_cents must be >= 0")
	}

	if c.HasDatabase() {
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	}
	return nil
}
