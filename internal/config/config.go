// Package config loads every startup-time setting from the environment.
// Throughput tier is an explicit setting here, never inferred from the
// shape of a credential.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

var (
	ErrInvalidTier         = errors.New("invalid rate limit tier")
	ErrInvalidCacheBackend = errors.New("invalid cache backend")
	ErrMissingRedisAddr    = errors.New("REDIS_ADDR is required for the redis cache backend")
)

// Tiers set the limiter's capacity and refill rate. Deployments pick one
// at startup; individual env overrides win over the tier preset.
const (
	TierStandard = "standard"
	TierPlus     = "plus"
)

type Config struct {
	Tavily    TavilyConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Cache     CacheConfig
	Metrics   MetricsConfig
	Sentiment SentimentConfig
	Server    ServerConfig
	Log       LogConfig
}

type TavilyConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type RateLimitConfig struct {
	Tier            string
	Capacity        int
	RefillPerMinute float64
	MaxQueue        int
	WaitTimeout     time.Duration
}

type BreakerConfig struct {
	FailureThreshold int
	FailureWindow    time.Duration
	CoolDown         time.Duration
	MaxAttempts      int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
}

type CacheConfig struct {
	Backend       string // "memory" | "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type MetricsConfig struct {
	Window        time.Duration
	MaxEntries    int
	CostTablePath string
}

type SentimentConfig struct {
	APIKey         string
	BaseURL        string
	RequestDelay   time.Duration
	MaxConcurrent  int
	RequestTimeout time.Duration
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Tavily: TavilyConfig{
			APIKey:  os.Getenv("TAVILY_API_KEY"),
			BaseURL: getEnvOrDefault("TAVILY_BASE_URL", "https://api.tavily.com"),
			Timeout: time.Duration(getEnvIntOrDefault("TAVILY_TIMEOUT_SEC", 30)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Tier:        getEnvOrDefault("RATE_LIMIT_TIER", TierStandard),
			MaxQueue:    getEnvIntOrDefault("RATE_LIMIT_MAX_QUEUE", 100),
			WaitTimeout: time.Duration(getEnvIntOrDefault("RATE_LIMIT_WAIT_TIMEOUT_SEC", 30)) * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvIntOrDefault("BREAKER_FAILURE_THRESHOLD", 5),
			FailureWindow:    time.Duration(getEnvIntOrDefault("BREAKER_FAILURE_WINDOW_SEC", 60)) * time.Second,
			CoolDown:         time.Duration(getEnvIntOrDefault("BREAKER_COOLDOWN_SEC", 30)) * time.Second,
			MaxAttempts:      getEnvIntOrDefault("BREAKER_MAX_ATTEMPTS", 3),
			BaseBackoff:      time.Duration(getEnvIntOrDefault("BREAKER_BASE_BACKOFF_MS", 500)) * time.Millisecond,
			MaxBackoff:       time.Duration(getEnvIntOrDefault("BREAKER_MAX_BACKOFF_MS", 8000)) * time.Millisecond,
		},
		Cache: CacheConfig{
			Backend:       getEnvOrDefault("CACHE_BACKEND", "memory"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),
		},
		Metrics: MetricsConfig{
			Window:        time.Duration(getEnvIntOrDefault("METRICS_WINDOW_HOURS", 24)) * time.Hour,
			MaxEntries:    getEnvIntOrDefault("METRICS_MAX_ENTRIES", 10000),
			CostTablePath: os.Getenv("METRICS_COST_TABLE"),
		},
		Sentiment: SentimentConfig{
			APIKey:         os.Getenv("SENTIMENT_API_KEY"),
			BaseURL:        getEnvOrDefault("SENTIMENT_BASE_URL", "https://api.sentimentgrid.io"),
			RequestDelay:   time.Duration(getEnvIntOrDefault("SENTIMENT_REQUEST_DELAY_MS", 1000)) * time.Millisecond,
			MaxConcurrent:  getEnvIntOrDefault("SENTIMENT_MAX_CONCURRENT", 4),
			RequestTimeout: time.Duration(getEnvIntOrDefault("SENTIMENT_TIMEOUT_SEC", 10)) * time.Second,
		},
		Server: ServerConfig{
			Host: getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port: getEnvIntOrDefault("SERVER_PORT", 8080),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}

	applyTier(&cfg.RateLimit)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyTier fills capacity and refill from the tier preset, keeping any
// explicit env overrides.
func applyTier(rl *RateLimitConfig) {
	capacity, refill := 60, 60.0
	if rl.Tier == TierPlus {
		capacity, refill = 300, 300.0
	}

	rl.Capacity = getEnvIntOrDefault("RATE_LIMIT_CAPACITY", capacity)
	rl.RefillPerMinute = float64(getEnvIntOrDefault("RATE_LIMIT_REFILL_PER_MINUTE", int(refill)))
}

func (c *Config) Validate() error {
	if c.RateLimit.Tier != TierStandard && c.RateLimit.Tier != TierPlus {
		return ErrInvalidTier
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrInvalidCacheBackend
	}
	return nil
}

// Configured reports whether the search credential is present. The client
// degrades gracefully without it, so this is not a Validate() error.
func (c *Config) Configured() bool {
	return c.Tavily.APIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
