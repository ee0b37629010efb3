package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Emulator {
		c.applyEmulator()
	}

	if len(c.Auth.IdentitySecret) < 32 {
		return fmt.Errorf("auth.identity_secret must be at least 32 characters (got %d)", len(c.Auth.IdentitySecret))
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required for the sqlite store")
		}
	case StorePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, sqlite, postgres (got %q)", c.Store.Driver)
	}

	if !slices.Contains([]string{"local", "redis"}, c.Store.Feed) {
		return fmt.Errorf("store.feed must be local or redis (got %q)", c.Store.Feed)
	}

	switch c.Blob.Driver {
	case "memory":
	case "s3":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("blob.driver must be memory or s3 (got %q)", c.Blob.Driver)
	}

	if err := c.Game.validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}

	if c.RateLimit.JoinPerMinute < 0 || c.RateLimit.ScansPerMinute < 0 {
		return fmt.Errorf("rate_limit values must be >= 0")
	}
	if c.RateLimit.CleanupInterval <= 0 {
		return fmt.Errorf("rate_limit.cleanup_interval must be > 0 (got %s)", c.RateLimit.CleanupInterval)
	}

	return nil
}

func (c *Config) applyEmulator() {
	c.Store.Driver = StoreMemory
	c.Store.Feed = "local"
	c.Blob.Driver = "memory"
}

func (g *GameConfig) validate() error {
	if g.StartingBudget < 0 {
		return fmt.Errorf("starting_budget must be >= 0 (got %d)", g.StartingBudget)
	}
	if g.AutosaveDebounce <= 0 {
		return fmt.Errorf("autosave_debounce must be > 0 (got %s)", g.AutosaveDebounce)
	}
	if g.AutosaveInterval < g.AutosaveDebounce {
		return fmt.Errorf("autosave_interval must be >= autosave_debounce (got %s)", g.AutosaveInterval)
	}
	if g.QRMaxAge <= 0 {
		return fmt.Errorf("qr_max_age must be > 0 (got %s)", g.QRMaxAge)
	}
	if g.LeaderboardLimit <= 0 {
		return fmt.Errorf("leaderboard_limit must be > 0 (got %d)", g.LeaderboardLimit)
	}
	return nil
}
