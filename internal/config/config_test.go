package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "none", cfg.AI.Provider)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 5, cfg.AI.BatchSize)
	assert.Equal(t, 4, cfg.AI.Workers)
	assert.Equal(t, 30*time.Minute, cfg.AI.CacheExpiry)
	assert.InDelta(t, 0.5, cfg.Alignment.MinMatchFraction, 1e-9)
	assert.InDelta(t, 0.8, cfg.Alignment.FuzzyThreshold, 1e-9)
	assert.InDelta(t, 0.05, cfg.Scoring.Background, 1e-9)
	assert.Equal(t, "8001", cfg.Server.Port)
	assert.Contains(t, cfg.Server.AllowedOrigins, "http://localhost:3000")
	assert.Equal(t, "", cfg.Store.Driver)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ai:
  provider: ollama
  model: qwen3-vl:2b
  timeout: 3s
  escalate_tiers: [L3]
alignment:
  min_match_fraction: 0.7
store:
  driver: sqlite
  dsn: /tmp/docwatch.db
log:
  level: debug
policy_file: policy.yaml
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "qwen3-vl:2b", cfg.AI.Model)
	assert.Equal(t, 3*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 5, cfg.AI.BatchSize, "unset keys keep defaults")
	tiers, err := cfg.AI.Tiers()
	require.NoError(t, err)
	assert.Equal(t, []models.Tier{models.TierL3}, tiers)
	assert.InDelta(t, 0.7, cfg.Alignment.MinMatchFraction, 1e-9)
	assert.Equal(t, "/tmp/docwatch.db", cfg.Store.ConnectionString())
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "policy.yaml", cfg.PolicyFile)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOCWATCH_AI_PROVIDER", "http")
	t.Setenv("DOCWATCH_AI_ENDPOINT", "http://adjudicator:9000/judge")
	t.Setenv("DOCWATCH_AI_TIMEOUT", "250ms")
	t.Setenv("DOCWATCH_SERVER_PORT", "9090")
	t.Setenv("DOCWATCH_STORE_DRIVER", "postgres")
	t.Setenv("DOCWATCH_STORE_POSTGRES_HOST", "db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.AI.Provider)
	assert.Equal(t, "http://adjudicator:9000/judge", cfg.AI.Endpoint)
	assert.Equal(t, 250*time.Millisecond, cfg.AI.Timeout)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "host=db port=5432 user= password= dbname=docwatch sslmode=disable", cfg.Store.ConnectionString())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown provider", func(c *Config) { c.AI.Provider = "gpt" }, "ai.provider"},
		{"http without endpoint", func(c *Config) { c.AI.Provider = "http" }, "ai.endpoint"},
		{"zero workers", func(c *Config) { c.AI.Workers = 0 }, "ai.workers"},
		{"bad tier", func(c *Config) { c.AI.EscalateTiers = []string{"L9"} }, "ai.escalate_tiers"},
		{"fraction too large", func(c *Config) { c.Alignment.MinMatchFraction = 1.5 }, "alignment.min_match_fraction"},
		{"background of one", func(c *Config) { c.Scoring.Background = 1 }, "scoring.background"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite" }, "store.dsn"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var text, jsonOut bytes.Buffer
	logger := SetupLoggerWithWriters(&text, &jsonOut, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("run complete", "tables", 18)

	assert.NotContains(t, text.String(), "hidden")
	assert.Contains(t, text.String(), "tables=18")

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(jsonOut.String())), &record))
	assert.Equal(t, "run complete", record["msg"])
	assert.EqualValues(t, 18, record["tables"])
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docwatch.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
