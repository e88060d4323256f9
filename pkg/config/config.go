// Package config loads engine configuration from config.yaml with
// environment variable overrides. Secrets only come from the environment.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the query engine core.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Store is the engine's own PostgreSQL database, which holds
	// connection records and query history.
	Store StoreConfig `yaml:"store"`

	// Redis backs the sliding-window rate limiter. Optional: when Host is
	// empty the limiter fails open.
	Redis RedisConfig `yaml:"redis"`

	// Adapters controls the datasource adapter cache.
	Adapters AdapterConfig `yaml:"adapters"`

	// LLM selects and configures the SQL-generation collaborator.
	LLM LLMConfig `yaml:"llm"`

	// CredentialsKey encrypts stored datasource passwords. 32 bytes,
	// base64 encoded (openssl rand -base64 32). Required.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"`
}

// StoreConfig holds the engine store (PostgreSQL) settings.
type StoreConfig struct {
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:"quill"`
	Password string `yaml:"-" env:"PGPASSWORD"`
	Database string `yaml:"database" env:"PGDATABASE" env-default:"quill_engine"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"PGMAX_CONNS" env-default:"25"`
}

// ConnectionString returns a keyword/value PostgreSQL connection string.
func (c *StoreConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds the optional rate-limit counter store settings.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AdapterConfig holds datasource adapter cache settings.
type AdapterConfig struct {
	// TTLMinutes bounds the age of a cached adapter regardless of use.
	TTLMinutes int `yaml:"ttl_minutes" env:"ADAPTER_TTL_MINUTES" env-default:"30"`
	// IdleMinutes evicts adapters that have not been acquired recently.
	IdleMinutes int `yaml:"idle_minutes" env:"ADAPTER_IDLE_MINUTES" env-default:"10"`
	// HealthIntervalSeconds is how long a health verdict stays fresh.
	HealthIntervalSeconds int `yaml:"health_interval_seconds" env:"ADAPTER_HEALTH_INTERVAL_SECONDS" env-default:"60"`
	// PoolMaxConns caps each datasource adapter's connection pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"ADAPTER_POOL_MAX_CONNS" env-default:"5"`
}

// LLMConfig selects the SQL-generation backend.
type LLMConfig struct {
	// Provider is "openai", "anthropic", or empty to disable generation.
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:""`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:""`
	BaseURL  string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"`
}

// Load reads config.yaml with environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}
	if cfg.CredentialsKey == "" {
		return nil, fmt.Errorf("CREDENTIALS_KEY must be set")
	}
	return cfg, nil
}

// LoadFromEnv reads configuration from the environment only, for hosts
// that do not ship a config.yaml.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if cfg.CredentialsKey == "" {
		return nil, fmt.Errorf("CREDENTIALS_KEY must be set")
	}
	return cfg, nil
}
