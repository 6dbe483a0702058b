// Package config defines the daemon settings and their loading from a YAML
// file with MEMORYD_-prefixed environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	ShortTerm  ShortTermConfig  `mapstructure:"short_term" yaml:"short_term"`
	LongTerm   LongTermConfig   `mapstructure:"long_term" yaml:"long_term"`
	Lifecycle  LifecycleConfig  `mapstructure:"lifecycle" yaml:"lifecycle"`
	WorldState WorldStateConfig `mapstructure:"world_state" yaml:"world_state"`
	LogLevel   string           `mapstructure:"log_level" yaml:"log_level"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// ShortTermConfig configures the short-term tier and its TTL store backend.
type ShortTermConfig struct {
	// Backend selects the TTL store: "memory" (embedded) or "redis".
	Backend    string        `mapstructure:"backend" yaml:"backend"`
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	Redis      RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig configures the Redis connection for the "redis" backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// LongTermConfig configures the durable tier.
type LongTermConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	// BatchSize is reserved for bulk long-term operations; the core logic
	// does not consume it yet.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// LifecycleConfig configures the consolidation policy and its scheduler.
type LifecycleConfig struct {
	ConsolidationThreshold int           `mapstructure:"consolidation_threshold" yaml:"consolidation_threshold"`
	ConsolidationInterval  time.Duration `mapstructure:"consolidation_interval" yaml:"consolidation_interval"`
	ShutdownGrace          time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
}

// WorldStateConfig configures the shared world-state log.
type WorldStateConfig struct {
	MaxHistory int `mapstructure:"max_history" yaml:"max_history"`
}

// Default returns the configuration used when no file or overrides are
// present. The values mirror a small single-node deployment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000"},
		ShortTerm: ShortTermConfig{
			Backend:    "memory",
			DefaultTTL: time.Hour,
			Redis:      RedisConfig{Addr: "localhost:6379"},
		},
		LongTerm: LongTermConfig{
			SQLitePath: "data/longterm.db",
			BatchSize:  100,
		},
		Lifecycle: LifecycleConfig{
			ConsolidationThreshold: 5,
			ConsolidationInterval:  5 * time.Minute,
			ShutdownGrace:          5 * time.Second,
		},
		WorldState: WorldStateConfig{MaxHistory: 100},
		LogLevel:   "info",
	}
}

// Load reads configuration from path (optional: "" loads defaults plus env
// overrides only). Environment variables use the MEMORYD_ prefix with
// underscores for nesting, e.g. MEMORYD_SHORT_TERM_BACKEND=redis.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("MEMORYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("short_term.backend", d.ShortTerm.Backend)
	v.SetDefault("short_term.default_ttl", d.ShortTerm.DefaultTTL)
	v.SetDefault("short_term.redis.addr", d.ShortTerm.Redis.Addr)
	v.SetDefault("short_term.redis.password", d.ShortTerm.Redis.Password)
	v.SetDefault("short_term.redis.db", d.ShortTerm.Redis.DB)
	v.SetDefault("long_term.sqlite_path", d.LongTerm.SQLitePath)
	v.SetDefault("long_term.batch_size", d.LongTerm.BatchSize)
	v.SetDefault("lifecycle.consolidation_threshold", d.Lifecycle.ConsolidationThreshold)
	v.SetDefault("lifecycle.consolidation_interval", d.Lifecycle.ConsolidationInterval)
	v.SetDefault("lifecycle.shutdown_grace", d.Lifecycle.ShutdownGrace)
	v.SetDefault("world_state.max_history", d.WorldState.MaxHistory)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate checks settings that would otherwise fail at an awkward moment
// deep inside the daemon.
func (c *Config) Validate() error {
	switch c.ShortTerm.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("short_term.backend must be memory or redis, got %q", c.ShortTerm.Backend)
	}
	if c.ShortTerm.DefaultTTL <= 0 {
		return fmt.Errorf("short_term.default_ttl must be positive, got %s", c.ShortTerm.DefaultTTL)
	}
	if c.Lifecycle.ConsolidationThreshold < 0 {
		return fmt.Errorf("lifecycle.consolidation_threshold cannot be negative, got %d", c.Lifecycle.ConsolidationThreshold)
	}
	if c.Lifecycle.ConsolidationInterval <= 0 {
		return fmt.Errorf("lifecycle.consolidation_interval must be positive, got %s", c.Lifecycle.ConsolidationInterval)
	}
	if c.WorldState.MaxHistory <= 0 {
		return fmt.Errorf("world_state.max_history must be positive, got %d", c.WorldState.MaxHistory)
	}
	if c.LongTerm.SQLitePath == "" {
		return fmt.Errorf("long_term.sqlite_path is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}
