package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "memoryd.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"server": map[string]any{"addr": ":9090"},
		"short_term": map[string]any{
			"backend":     "redis",
			"default_ttl": "30m",
			"redis":       map[string]any{"addr": "redis.internal:6379", "db": 2},
		},
		"lifecycle": map[string]any{
			"consolidation_threshold": 10,
			"consolidation_interval":  "1m",
		},
		"log_level": "debug",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "redis", cfg.ShortTerm.Backend)
	require.Equal(t, 30*time.Minute, cfg.ShortTerm.DefaultTTL)
	require.Equal(t, "redis.internal:6379", cfg.ShortTerm.Redis.Addr)
	require.Equal(t, 2, cfg.ShortTerm.Redis.DB)
	require.Equal(t, 10, cfg.Lifecycle.ConsolidationThreshold)
	require.Equal(t, time.Minute, cfg.Lifecycle.ConsolidationInterval)
	require.Equal(t, "debug", cfg.LogLevel)

	// Untouched sections keep their defaults.
	require.Equal(t, Default().LongTerm, cfg.LongTerm)
	require.Equal(t, Default().WorldState, cfg.WorldState)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEMORYD_SERVER_ADDR", ":7777")
	t.Setenv("MEMORYD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Server.Addr)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.ShortTerm.Backend = "mongo" }},
		{"zero ttl", func(c *Config) { c.ShortTerm.DefaultTTL = 0 }},
		{"negative threshold", func(c *Config) { c.Lifecycle.ConsolidationThreshold = -1 }},
		{"zero interval", func(c *Config) { c.Lifecycle.ConsolidationInterval = 0 }},
		{"zero history", func(c *Config) { c.WorldState.MaxHistory = 0 }},
		{"empty sqlite path", func(c *Config) { c.LongTerm.SQLitePath = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, Default().Validate())
}
