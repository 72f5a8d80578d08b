package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for cleargate.
type Config struct {
	OpenSanctions OpenSanctionsConfig `mapstructure:"opensanctions"`
	SanctionsIO   SanctionsIOConfig   `mapstructure:"sanctions_io"`
	Neo4j         Neo4jConfig         `mapstructure:"neo4j"`
	Search        SearchConfig        `mapstructure:"search"`
	Graph         GraphConfig         `mapstructure:"graph"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Breaker       BreakerConfig       `mapstructure:"breaker"`
	Claude        ClaudeConfig        `mapstructure:"claude"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	API           APIConfig           `mapstructure:"api"`
}

// OpenSanctionsConfig holds OpenSanctions API settings.
type OpenSanctionsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// String returns a safe representation with the API key masked.
func (c OpenSanctionsConfig) String() string {
	return fmt.Sprintf("OpenSanctionsConfig{BaseURL:%s, APIKey:%s}", c.BaseURL, maskAPIKey(c.APIKey))
}

// SanctionsIOConfig holds sanctions.io API settings.
type SanctionsIOConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// String returns a safe representation with the API key masked.
func (c SanctionsIOConfig) String() string {
	return fmt.Sprintf("SanctionsIOConfig{BaseURL:%s, APIKey:%s}", c.BaseURL, maskAPIKey(c.APIKey))
}

// Neo4jConfig holds offshore-leaks graph database connection settings.
// Enabled is derived: the graph is on when a URI is configured.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// Enabled reports whether the offshore-leaks graph is configured.
func (c Neo4jConfig) Enabled() bool { return c.URI != "" }

// String returns a safe representation with the password masked.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, User:%s, Password:%s}", c.URI, c.User, maskAPIKey(c.Password))
}

// SearchConfig holds source fan-out settings.
type SearchConfig struct {
	SourceTimeoutSeconds int `mapstructure:"source_timeout_seconds"`
}

// GraphConfig holds traversal settings.
type GraphConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// CacheConfig holds search response cache settings. Backend is "memory" or
// "redis"; "none" disables caching.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	TTLSeconds    int    `mapstructure:"ttl_seconds"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// RateLimitConfig holds per-IP HTTP rate limit settings. Zero requests
// disables limiting.
type RateLimitConfig struct {
	Requests      int `mapstructure:"requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// BreakerConfig holds per-source circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold  int `mapstructure:"failure_threshold"`
	RetryAfterSeconds int `mapstructure:"retry_after_seconds"`
}

// ClaudeConfig holds Anthropic Claude API settings for enrichment.
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", maskAPIKey(c.APIKey), c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("opensanctions.base_url", "https://api.opensanctions.org")
	v.SetDefault("opensanctions.api_key", "")

	v.SetDefault("sanctions_io.base_url", "https://api.sanctions.io")
	v.SetDefault("sanctions_io.api_key", "")

	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")

	v.SetDefault("search.source_timeout_seconds", 5)
	v.SetDefault("graph.timeout_seconds", 10)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window_seconds", 60)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.retry_after_seconds", 30)

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".cleargate"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("CLEARGATE")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("opensanctions.api_key", "OPENSANCTIONS_API_KEY")
	_ = v.BindEnv("sanctions_io.api_key", "SANCTIONS_IO_API_KEY")
	_ = v.BindEnv("neo4j.uri", "NEO4J_URI")
	_ = v.BindEnv("neo4j.user", "NEO4J_USER")
	_ = v.BindEnv("neo4j.password", "NEO4J_PASSWORD")
	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("api.listen_addr", "CLEARGATE_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "CLEARGATE_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.OpenSanctions.BaseURL == "" {
		return fmt.Errorf("opensanctions.base_url must not be empty")
	}
	if c.SanctionsIO.BaseURL == "" {
		return fmt.Errorf("sanctions_io.base_url must not be empty")
	}
	if c.Neo4j.Enabled() && c.Neo4j.User == "" {
		return fmt.Errorf("neo4j.user must not be empty when neo4j.uri is set")
	}
	if c.Search.SourceTimeoutSeconds <= 0 {
		return fmt.Errorf("search.source_timeout_seconds must be greater than 0")
	}
	if c.Graph.TimeoutSeconds <= 0 {
		return fmt.Errorf("graph.timeout_seconds must be greater than 0")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend must be one of memory, redis, none")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr must not be empty when cache.backend is redis")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be greater than 0")
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("ratelimit.requests must be >= 0")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("ratelimit.window_seconds must be greater than 0")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be greater than 0")
	}
	if c.Breaker.RetryAfterSeconds <= 0 {
		return fmt.Errorf("breaker.retry_after_seconds must be greater than 0")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
