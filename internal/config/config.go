package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig        `mapstructure:"server"`
	Log         LogConfig           `mapstructure:"log"`
	Redis       RedisConfig         `mapstructure:"redis"`
	RateLimit   RateLimitConfig     `mapstructure:"rate_limit"`
	Cache       CacheConfig         `mapstructure:"cache"`
	Database    DatabaseConfig      `mapstructure:"database"`
	Tracing     TracingConfig       `mapstructure:"tracing"`
	Router      RouterConfig        `mapstructure:"router"`
	Providers   []ProviderConfig    `mapstructure:"providers"`
	Deployments []DeploymentConfig  `mapstructure:"deployments"`
	Fallbacks   map[string][]string `mapstructure:"fallbacks"`
}

type ServerConfig struct {
	Port    string   `mapstructure:"port" validate:"required"`
	Env     string   `mapstructure:"env"`
	APIKeys []string `mapstructure:"api_keys"`
	// UpdateCheckURL points at a release document; empty disables the check.
	UpdateCheckURL string `mapstructure:"update_check_url" validate:"omitempty,url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type CacheConfig struct {
	EmbeddingsEnabled bool          `mapstructure:"embeddings_enabled"`
	EmbeddingsTTL     time.Duration `mapstructure:"embeddings_ttl"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// RouterConfig holds the retry and selection knobs of the routing core.
type RouterConfig struct {
	Strategy         string        `mapstructure:"strategy"`
	MaxRetries       int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryBaseDelayMs int           `mapstructure:"retry_base_delay_ms" validate:"gte=0"`
	RetryMaxDelayMs  int           `mapstructure:"retry_max_delay_ms" validate:"gtefield=RetryBaseDelayMs"`
	AttemptTimeout   time.Duration `mapstructure:"attempt_timeout" validate:"gte=0"`
	MinVersion       string        `mapstructure:"min_version"`
}

// ProviderConfig represents the configuration for a single AI provider.
type ProviderConfig struct {
	ID      string            `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Type    string            `json:"type" yaml:"type" mapstructure:"type" validate:"required"`
	Name    string            `json:"name" yaml:"name" mapstructure:"name"`
	APIKey  string            `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	BaseURL string            `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Config  map[string]string `json:"config" yaml:"config" mapstructure:"config"`
	Enabled bool              `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// DeploymentConfig describes one concrete backend serving a model alias.
type DeploymentConfig struct {
	Name               string   `mapstructure:"name" validate:"required"`
	ModelAlias         string   `mapstructure:"model_alias" validate:"required"`
	Provider           string   `mapstructure:"provider" validate:"required"`
	UpstreamModel      string   `mapstructure:"upstream_model"`
	InputCostPer1K     *float64 `mapstructure:"input_cost_per_1k" validate:"omitempty,gte=0"`
	OutputCostPer1K    *float64 `mapstructure:"output_cost_per_1k" validate:"omitempty,gte=0"`
	Priority           int      `mapstructure:"priority"`
	Enabled            *bool    `mapstructure:"enabled"`
	SupportsEmbeddings bool     `mapstructure:"supports_embeddings"`
	SupportsVision     bool     `mapstructure:"supports_vision"`
}

// IsEnabled treats an omitted enabled flag as true.
func (d DeploymentConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// keyDelimiter separates nested config keys. Model names such as
// "gpt-3.5-turbo" appear as map keys under fallbacks, so "." cannot be used.
const keyDelimiter = "::"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a single config section or entry against its struct tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API Keys
	for i, p := range cfg.Providers {
		cfg.Providers[i].APIKey = resolveSecret(v, p.APIKey)
	}
	for i, k := range cfg.Server.APIKeys {
		cfg.Server.APIKeys[i] = resolveSecret(v, k)
	}

	if err := validate.Struct(cfg.Server); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if err := validate.Struct(cfg.Router); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server::port", "8080")
	v.SetDefault("server::env", "development")
	v.SetDefault("log::level", "info")
	v.SetDefault("log::format", "console")
	v.SetDefault("redis::enabled", false)
	v.SetDefault("redis::addr", "localhost:6379")
	v.SetDefault("rate_limit::requests_per_second", 10.0)
	v.SetDefault("rate_limit::burst", 20)
	v.SetDefault("cache::embeddings_enabled", true)
	v.SetDefault("cache::embeddings_ttl", 24*time.Hour)
	v.SetDefault("database::path", "prism.db")
	v.SetDefault("tracing::enabled", false)
	v.SetDefault("tracing::service_name", "prism-router")
	v.SetDefault("router::strategy", "simple")
	v.SetDefault("router::max_retries", 3)
	v.SetDefault("router::retry_base_delay_ms", 500)
	v.SetDefault("router::retry_max_delay_ms", 10000)
	v.SetDefault("router::attempt_timeout", 0)
}

// resolveSecret expands "ENV:NAME" references.
func resolveSecret(v *viper.Viper, raw string) string {
	if !strings.HasPrefix(raw, "ENV:") {
		return raw
	}
	envVar := strings.TrimPrefix(raw, "ENV:")
	// Check process environment first (explicit override)
	val := os.Getenv(envVar)
	if val == "" {
		// Then check viper (which might have it from other sources)
		val = v.GetString(envVar)
	}
	return val
}
