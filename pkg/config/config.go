package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"streamgate/pkg/validation"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Storage struct {
		Backend string `yaml:"backend"`
	} `yaml:"storage"`

	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		PoolSize  int    `yaml:"pool_size"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Postgres struct {
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"postgres"`

	LiveKit struct {
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		APISecret      string        `yaml:"api_secret"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"livekit"`

	Provisioning struct {
		LockTTL     time.Duration `yaml:"lock_ttl"`
		LockTimeout time.Duration `yaml:"lock_timeout"`
		// MaxParallelDeletes bounds the reconcile fan-out.
		MaxParallelDeletes int `yaml:"max_parallel_deletes"`
	} `yaml:"provisioning"`

	Retry struct {
		Enabled      bool          `yaml:"enabled"`
		MaxAttempts  int           `yaml:"max_attempts"`
		InitialDelay time.Duration `yaml:"initial_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		Multiplier   float64       `yaml:"multiplier"`
		Jitter       bool          `yaml:"jitter"`
	} `yaml:"retry"`

	CircuitBreaker struct {
		Enabled             bool          `yaml:"enabled"`
		FailureThreshold    int           `yaml:"failure_threshold"`
		SuccessThreshold    int           `yaml:"success_threshold"`
		Timeout             time.Duration `yaml:"timeout"`
		MaxRequestsHalfOpen int           `yaml:"max_requests_half_open"`
	} `yaml:"circuit_breaker"`

	Cache struct {
		StreamKeysTTL time.Duration `yaml:"stream_keys_ttl"`
	} `yaml:"cache"`

	Events struct {
		Enabled bool   `yaml:"enabled"`
		Channel string `yaml:"channel"`
	} `yaml:"events"`

	Auth struct {
		JWTSecret      string   `yaml:"jwt_secret"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}

	// Storage
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("storage.backend=redis requires redis.enabled=true")
		}
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn must not be empty when storage.backend=postgres")
		}
		if c.Postgres.MaxConns <= 0 {
			return fmt.Errorf("postgres.max_conns must be > 0")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, redis, postgres (got %q)", c.Storage.Backend)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}
	if c.Events.Enabled {
		if !c.Redis.Enabled {
			return fmt.Errorf("events.enabled requires redis.enabled=true")
		}
		if c.Events.Channel == "" {
			return fmt.Errorf("events.channel must not be empty when events.enabled=true")
		}
	}

	// LiveKit
	if err := validation.ValidateURL(c.LiveKit.URL); err != nil {
		return fmt.Errorf("livekit.url: %w", err)
	}
	if c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
		return fmt.Errorf("livekit.api_key and livekit.api_secret must be set")
	}
	if c.LiveKit.RequestTimeout <= 0 {
		return fmt.Errorf("livekit.request_timeout must be > 0")
	}

	// Provisioning
	if c.Provisioning.LockTTL <= 0 {
		return fmt.Errorf("provisioning.lock_ttl must be > 0")
	}
	// In-memory leases are not renewed, so the TTL has to outlast a provision:
	// the reconcile listing plus the create call, each bounded by request_timeout.
	if c.Provisioning.LockTTL <= 2*c.LiveKit.RequestTimeout {
		return fmt.Errorf("provisioning.lock_ttl (%s) must exceed twice livekit.request_timeout (%s)",
			c.Provisioning.LockTTL, c.LiveKit.RequestTimeout)
	}
	if c.Provisioning.LockTimeout <= 0 {
		return fmt.Errorf("provisioning.lock_timeout must be > 0")
	}
	if c.Provisioning.MaxParallelDeletes <= 0 {
		return fmt.Errorf("provisioning.max_parallel_deletes must be > 0")
	}

	// Retry / circuit breaker
	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("retry.max_attempts must be > 0 when retry.enabled=true")
		}
		if c.Retry.Multiplier < 1 {
			return fmt.Errorf("retry.multiplier must be >= 1")
		}
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 || c.CircuitBreaker.SuccessThreshold <= 0 {
			return fmt.Errorf("circuit_breaker thresholds must be > 0")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return fmt.Errorf("circuit_breaker.timeout must be > 0")
		}
	}

	if c.Cache.StreamKeysTTL <= 0 {
		return fmt.Errorf("cache.stream_keys_ttl must be > 0")
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
// A .env file in the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SearchPaths lists the locations tried by LoadFirst after the
// STREAMGATE_CONFIG variable.
var SearchPaths = []string{
	"configs/config.yaml",
	"/etc/streamgate/config.yaml",
	"config.yaml",
}

// LoadFirst loads the first existing file among STREAMGATE_CONFIG and
// paths. With no file found it returns defaults plus env overrides and an
// empty path.
func LoadFirst(paths ...string) (*Config, string, error) {
	candidates := append([]string{os.Getenv("STREAMGATE_CONFIG")}, paths...)
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		return cfg, path, err
	}
	cfg, err := Load("")
	return cfg, "", err
}

// DefaultConfig returns configuration with sane defaults. LiveKit
// credentials have no default and must come from the file or environment.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.MaxBodyBytes = 1 << 20

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Storage.Backend = StorageMemory

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.KeyPrefix = "streamgate:"

	cfg.Postgres.MaxConns = 10
	cfg.Postgres.Migrate = true

	cfg.LiveKit.URL = "http://localhost:7880"
	cfg.LiveKit.RequestTimeout = 10 * time.Second

	cfg.Provisioning.LockTTL = 30 * time.Second
	cfg.Provisioning.LockTimeout = 5 * time.Second
	cfg.Provisioning.MaxParallelDeletes = 8

	cfg.Retry.Enabled = true
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.InitialDelay = 100 * time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Second
	cfg.Retry.Multiplier = 2.0
	cfg.Retry.Jitter = true

	cfg.CircuitBreaker.Enabled = true
	cfg.CircuitBreaker.FailureThreshold = 5
	cfg.CircuitBreaker.SuccessThreshold = 2
	cfg.CircuitBreaker.Timeout = 30 * time.Second
	cfg.CircuitBreaker.MaxRequestsHalfOpen = 1

	cfg.Cache.StreamKeysTTL = 30 * time.Second

	cfg.Events.Enabled = false
	cfg.Events.Channel = "streamgate:events"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	return cfg
}

func (c *Config) applyEnvOverrides() error {
	if addr := os.Getenv("STREAMGATE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("STREAMGATE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if backend := os.Getenv("STREAMGATE_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if addr := os.Getenv("STREAMGATE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if pw := os.Getenv("STREAMGATE_REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if dsn := os.Getenv("STREAMGATE_POSTGRES_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
	}
	if url := os.Getenv("STREAMGATE_LIVEKIT_URL"); url != "" {
		c.LiveKit.URL = url
	}
	if key := os.Getenv("STREAMGATE_LIVEKIT_API_KEY"); key != "" {
		c.LiveKit.APIKey = key
	}
	if secret := os.Getenv("STREAMGATE_LIVEKIT_API_SECRET"); secret != "" {
		c.LiveKit.APISecret = secret
	}
	if secret := os.Getenv("STREAMGATE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if v := os.Getenv("STREAMGATE_EVENTS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STREAMGATE_EVENTS_ENABLED: %w", err)
		}
		c.Events.Enabled = enabled
	}
	return nil
}
