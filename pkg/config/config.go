package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Cache     CacheConfig
	Filters   FiltersConfig
	Retry     RetryConfig
	Breaker   BreakerConfig
	Session   SessionConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

// BackendConfig points at the recommendations REST API.
type BackendConfig struct {
	BaseURL       string
	TimeoutSec    int
	PageSize      int
	CountingLimit int
}

type CacheConfig struct {
	VocabularyStaleSec int
	ListStaleSec       int
}

type FiltersConfig struct {
	DebounceMs int
}

type RetryConfig struct {
	MaxAttempts    int
	InitialDelayMs int
	MaxDelayMs     int
}

type BreakerConfig struct {
	FailureThreshold int
	TimeoutSec       int
}

type SessionConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/recommendations-console")

	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.baseURL is required")
	}
	if c.Backend.PageSize <= 0 {
		return fmt.Errorf("backend.pageSize must be positive, got %d", c.Backend.PageSize)
	}
	if c.Backend.CountingLimit < c.Backend.PageSize {
		return fmt.Errorf("backend.countingLimit (%d) must not be below backend.pageSize (%d)", c.Backend.CountingLimit, c.Backend.PageSize)
	}
	return nil
}

func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c CacheConfig) VocabularyStaleTime() time.Duration {
	return time.Duration(c.VocabularyStaleSec) * time.Second
}

func (c CacheConfig) ListStaleTime() time.Duration {
	return time.Duration(c.ListStaleSec) * time.Second
}

func (c FiltersConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.development", false)

	v.SetDefault("backend.baseURL", "http://localhost:3001")
	v.SetDefault("backend.timeoutSec", 15)
	v.SetDefault("backend.pageSize", 10)
	v.SetDefault("backend.countingLimit", 10000)

	v.SetDefault("cache.vocabularyStaleSec", 600)
	v.SetDefault("cache.listStaleSec", 0)

	v.SetDefault("filters.debounceMs", 300)

	v.SetDefault("retry.maxAttempts", 3)
	v.SetDefault("retry.initialDelayMs", 100)
	v.SetDefault("retry.maxDelayMs", 2000)

	v.SetDefault("breaker.failureThreshold", 5)
	v.SetDefault("breaker.timeoutSec", 30)

	v.SetDefault("session.path", "./data/session.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 600)

	v.SetDefault("rateLimit.requestsPerMinute", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
