package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
)

// BaseConfig holds all configuration for the listviews CLI
type BaseConfig struct {
	App         AppConfig         `json:"app"`
	Persistence PersistenceConfig `json:"persistence"`
	Features    FeaturesConfig    `json:"features"`
}

// AppConfig holds the default actor and organization used by commands that
// do not receive them as flags.
type AppConfig struct {
	Name           string `json:"name" default:"listviews"`
	Verbose        bool   `json:"verbose" env:"LISTVIEWS_VERBOSE" default:"false"`
	OrgID          string `json:"org_id" env:"LISTVIEWS_ORG_ID" default:"11111111-1111-1111-1111-111111111111"`
	ActorID        string `json:"actor_id" env:"LISTVIEWS_ACTOR_ID" default:"aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"`
	ActorRole      string `json:"actor_role" env:"LISTVIEWS_ACTOR_ROLE" default:"owner"`
	AttributeCache bool   `json:"attribute_cache" env:"LISTVIEWS_ATTRIBUTE_CACHE" default:"false"`
}

// FeaturesConfig toggles optional behavior.
type FeaturesConfig struct {
	UserPreferences bool `json:"user_preferences" env:"LISTVIEWS_USER_PREFERENCES" default:"true"`
}

// PersistenceConfig implements persistence.Config interface
type PersistenceConfig struct {
	Debug          bool          `json:"debug" default:"false"`
	Driver         string        `json:"driver" env:"DB_DRIVER" default:"sqlite"`
	Server         string        `json:"server" env:"DB_SERVER" default:"file:listviews.db?_journal_mode=WAL&cache=shared&_fk=1"`
	PingTimeout    time.Duration `json:"ping_timeout" default:"5s"`
	OtelIdentifier string        `json:"otel_identifier" default:"go-listviews"`
}

func (c PersistenceConfig) GetDebug() bool                { return c.Debug }
func (c PersistenceConfig) GetDriver() string             { return c.Driver }
func (c PersistenceConfig) GetServer() string             { return c.Server }
func (c PersistenceConfig) GetPingTimeout() time.Duration { return c.PingTimeout }
func (c PersistenceConfig) GetOtelIdentifier() string     { return c.OtelIdentifier }

// Dialect normalizes the driver name to "sqlite" or "postgres".
func (c PersistenceConfig) Dialect() string {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return ""
	}
}

// GetPersistence returns persistence config
func (c *BaseConfig) GetPersistence() persistence.Config {
	return c.Persistence
}

// Validate implements config.Validable interface
func (c *BaseConfig) Validate() error {
	if c.Persistence.Dialect() == "" {
		return fmt.Errorf("config: unsupported persistence driver %q", c.Persistence.Driver)
	}
	if strings.TrimSpace(c.Persistence.Server) == "" {
		return fmt.Errorf("config: persistence server required")
	}
	if c.App.OrgID != "" {
		if _, err := uuid.Parse(c.App.OrgID); err != nil {
			return fmt.Errorf("config: invalid org_id: %w", err)
		}
	}
	if c.App.ActorID != "" {
		if _, err := uuid.Parse(c.App.ActorID); err != nil {
			return fmt.Errorf("config: invalid actor_id: %w", err)
		}
	}
	return nil
}
