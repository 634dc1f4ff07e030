package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docwatch/internal/models"
	"docwatch/internal/store"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. DOCWATCH_AI_PROVIDER.
const EnvPrefix = "DOCWATCH"

// Config is the complete docwatch configuration.
type Config struct {
	AI         AIConfig        `json:"ai" mapstructure:"ai"`
	Alignment  AlignmentConfig `json:"alignment" mapstructure:"alignment"`
	Scoring    ScoringConfig   `json:"scoring" mapstructure:"scoring"`
	Store      StoreConfig     `json:"store" mapstructure:"store"`
	Server     ServerConfig    `json:"server" mapstructure:"server"`
	Log        LogConfig       `json:"log" mapstructure:"log"`
	PolicyFile string          `json:"policy_file" mapstructure:"policy_file"`
}

// AIConfig selects and tunes the adjudication backend.
type AIConfig struct {
	Provider      string        `json:"provider" mapstructure:"provider"` // none, http, ollama, openai, anthropic
	Endpoint      string        `json:"endpoint" mapstructure:"endpoint"`
	BaseURL       string        `json:"base_url" mapstructure:"base_url"`
	Model         string        `json:"model" mapstructure:"model"`
	APIKey        string        `json:"-" mapstructure:"api_key"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
	BatchSize     int           `json:"batch_size" mapstructure:"batch_size"`
	Workers       int           `json:"workers" mapstructure:"workers"`
	EscalateTiers []string      `json:"escalate_tiers" mapstructure:"escalate_tiers"`
	CacheExpiry   time.Duration `json:"cache_expiry" mapstructure:"cache_expiry"`
}

// AlignmentConfig tunes column alignment.
type AlignmentConfig struct {
	MinMatchFraction float64 `json:"min_match_fraction" mapstructure:"min_match_fraction"`
	FuzzyThreshold   float64 `json:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
}

// ScoringConfig tunes aggregation.
type ScoringConfig struct {
	Background float64 `json:"background" mapstructure:"background"`
}

// StoreConfig selects the run database. An empty driver disables
// persistence.
type StoreConfig struct {
	Driver   string               `json:"driver" mapstructure:"driver"`
	DSN      string               `json:"dsn" mapstructure:"dsn"`
	Postgres store.PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// ConnectionString returns the DSN, building one from the postgres
// section when none is set.
func (s StoreConfig) ConnectionString() string {
	if s.DSN != "" || s.Driver != store.DriverPostgres {
		return s.DSN
	}
	return s.Postgres.DSN()
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           string   `json:"port" mapstructure:"port"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
	File  string `json:"file" mapstructure:"file"`
}

// SlogLevel parses Level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "none")
	v.SetDefault("ai.endpoint", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout", 10*time.Second)
	v.SetDefault("ai.batch_size", 5)
	v.SetDefault("ai.workers", 4)
	v.SetDefault("ai.escalate_tiers", []string{})
	v.SetDefault("ai.cache_expiry", 30*time.Minute)

	v.SetDefault("alignment.min_match_fraction", 0.5)
	v.SetDefault("alignment.fuzzy_threshold", 0.8)

	v.SetDefault("scoring.background", 0.05)

	v.SetDefault("store.driver", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "docwatch")
	v.SetDefault("store.postgres.sslmode", "disable")

	v.SetDefault("server.port", "8001")
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:3000", "http://localhost:3001", "http://localhost:3002", "http://127.0.0.1:3000",
	})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("policy_file", "")
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic("config: invalid defaults: " + err.Error())
	}
	return cfg
}

// Load reads configuration from path, or from docwatch.yaml in the working
// directory or ~/.docwatch when path is empty. A missing default file is
// not an error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.docwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "", "none", "http", "ollama", "openai", "anthropic":
	default:
		return &ConfigError{Field: "ai.provider", Message: fmt.Sprintf("unknown provider %q", c.AI.Provider)}
	}
	if c.AI.Provider == "http" && c.AI.Endpoint == "" {
		return &ConfigError{Field: "ai.endpoint", Message: "required for the http provider"}
	}
	if c.AI.Timeout <= 0 {
		return &ConfigError{Field: "ai.timeout", Message: "must be positive"}
	}
	if c.AI.BatchSize <= 0 {
		return &ConfigError{Field: "ai.batch_size", Message: "must be positive"}
	}
	if c.AI.Workers <= 0 {
		return &ConfigError{Field: "ai.workers", Message: "must be positive"}
	}
	if _, err := c.AI.Tiers(); err != nil {
		return &ConfigError{Field: "ai.escalate_tiers", Message: err.Error()}
	}

	if f := c.Alignment.MinMatchFraction; f <= 0 || f > 1 {
		return &ConfigError{Field: "alignment.min_match_fraction", Message: "must be in (0, 1]"}
	}
	if f := c.Alignment.FuzzyThreshold; f <= 0 || f > 1 {
		return &ConfigError{Field: "alignment.fuzzy_threshold", Message: "must be in (0, 1]"}
	}
	if b := c.Scoring.Background; b < 0 || b >= 1 {
		return &ConfigError{Field: "scoring.background", Message: "must be in [0, 1)"}
	}

	switch c.Store.Driver {
	case "", store.DriverSQLite, store.DriverPostgres:
	default:
		return &ConfigError{Field: "store.driver", Message: fmt.Sprintf("unsupported driver %q", c.Store.Driver)}
	}
	if c.Store.Driver == store.DriverSQLite && c.Store.DSN == "" {
		return &ConfigError{Field: "store.dsn", Message: "required for the sqlite driver"}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return &ConfigError{Field: "log.level", Message: err.Error()}
	}
	return nil
}

// Tiers parses EscalateTiers.
func (a AIConfig) Tiers() ([]models.Tier, error) {
	tiers := make([]models.Tier, 0, len(a.EscalateTiers))
	for _, raw := range a.EscalateTiers {
		t, err := models.ParseTier(raw)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
