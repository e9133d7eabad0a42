package relay

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultRoutePath           = "/app"
	DefaultMaxBodySize         = 100 * 1024       // 100KB
	DefaultMaxResponseBodySize = 10 * 1024 * 1024 // 10MB
	DefaultForwardTimeout      = 10 * time.Second
	DefaultShutdownTimeout     = 15 * time.Second
	DefaultReadHeaderTimeout   = 5 * time.Second
	DefaultReplayTTL           = 5 * time.Minute

	// Circuit breaker defaults
	DefaultCircuitBreakerMaxRequests = 5
	DefaultCircuitBreakerInterval    = 60 * time.Second
	DefaultCircuitBreakerTimeout     = 30 * time.Second
	DefaultCircuitBreakerThreshold   = 0.7

	// Redis defaults
	DefaultRedisPoolSize     = 10
	DefaultRedisMinIdleConns = 2
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second

	// Memory cache defaults
	DefaultMemoryCacheMaxSize         = 10000
	DefaultMemoryCacheCleanupInterval = 1 * time.Minute

	DefaultMetricsPath = "/metrics"
)

// Config represents the relay configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	// PublicKey is the hex encoded Ed25519 verification key.
	PublicKey string

	Server ServerConfig

	Forward ForwardConfig

	Replay ReplayConfig

	CircuitBreaker CircuitBreakerConfig

	Metrics MetricsConfig

	Logging LoggingConfig
}

// ServerConfig configures the inbound listener and route
type ServerConfig struct {
	Port              string
	RoutePath         string
	MaxBodySize       int64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// ForwardConfig configures the downstream call
type ForwardConfig struct {
	URL                 string
	Timeout             time.Duration
	MaxResponseBodySize int64
}

// ReplayConfig configures the optional replay guard
type ReplayConfig struct {
	Enabled bool
	Type    string // "redis" or "memory"
	TTL     time.Duration
	Redis   RedisConfig
	Memory  MemoryConfig
}

// RedisConfig configures Redis connection
type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableTLS     bool
	TLSSkipVerify bool
	TLSConfig     *tls.Config
}

// MemoryConfig configures in-memory cache
type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
	EnableLRU       bool
}

// CircuitBreakerConfig configures circuit breaker
type CircuitBreakerConfig struct {
	Enabled     bool
	MaxRequests int
	Interval    time.Duration
	Timeout     time.Duration
	Threshold   float64 // Failure ratio threshold (0.0-1.0)
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

// ConfigBuilder provides a fluent interface for building Config
type ConfigBuilder struct {
	config *Config
}

// NewConfig creates a new ConfigBuilder with defaults
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		config: &Config{
			Server: ServerConfig{
				RoutePath:         DefaultRoutePath,
				MaxBodySize:       DefaultMaxBodySize,
				ReadHeaderTimeout: DefaultReadHeaderTimeout,
				ShutdownTimeout:   DefaultShutdownTimeout,
			},
			Forward: ForwardConfig{
				Timeout:             DefaultForwardTimeout,
				MaxResponseBodySize: DefaultMaxResponseBodySize,
			},
			Replay: ReplayConfig{
				Enabled: false,
				Type:    "memory",
				TTL:     DefaultReplayTTL,
				Redis: RedisConfig{
					PoolSize:     DefaultRedisPoolSize,
					MinIdleConns: DefaultRedisMinIdleConns,
					DialTimeout:  DefaultRedisDialTimeout,
					ReadTimeout:  DefaultRedisReadTimeout,
					WriteTimeout: DefaultRedisWriteTimeout,
				},
				Memory: MemoryConfig{
					MaxSize:         DefaultMemoryCacheMaxSize,
					CleanupInterval: DefaultMemoryCacheCleanupInterval,
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxRequests: DefaultCircuitBreakerMaxRequests,
				Interval:    DefaultCircuitBreakerInterval,
				Timeout:     DefaultCircuitBreakerTimeout,
				Threshold:   DefaultCircuitBreakerThreshold,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    DefaultMetricsPath,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
		},
	}
}

// WithPublicKey sets the hex encoded verification key
func (b *ConfigBuilder) WithPublicKey(key string) *ConfigBuilder {
	b.config.PublicKey = key
	return b
}

// WithForwardingURL sets the downstream URL
func (b *ConfigBuilder) WithForwardingURL(u string) *ConfigBuilder {
	b.config.Forward.URL = u
	return b
}

// WithPort sets the listening port
func (b *ConfigBuilder) WithPort(port string) *ConfigBuilder {
	b.config.Server.Port = port
	return b
}

// WithServer sets the server configuration
func (b *ConfigBuilder) WithServer(server ServerConfig) *ConfigBuilder {
	b.config.Server = server
	return b
}

// WithForward sets the forwarding configuration
func (b *ConfigBuilder) WithForward(forward ForwardConfig) *ConfigBuilder {
	b.config.Forward = forward
	return b
}

// WithReplay sets the replay guard configuration
func (b *ConfigBuilder) WithReplay(replay ReplayConfig) *ConfigBuilder {
	b.config.Replay = replay
	return b
}

// WithCircuitBreaker sets the circuit breaker configuration
func (b *ConfigBuilder) WithCircuitBreaker(cb CircuitBreakerConfig) *ConfigBuilder {
	b.config.CircuitBreaker = cb
	return b
}

// WithMetrics sets the metrics configuration
func (b *ConfigBuilder) WithMetrics(metrics MetricsConfig) *ConfigBuilder {
	b.config.Metrics = metrics
	return b
}

// WithLogging sets the logging configuration
func (b *ConfigBuilder) WithLogging(logging LoggingConfig) *ConfigBuilder {
	b.config.Logging = logging
	return b
}

// Build validates and returns the Config
func (b *ConfigBuilder) Build() (*Config, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b.config, nil
}

// Validate validates the configuration. Every error wraps ErrConfigurationMissing.
func (c *Config) Validate() error {
	if c.PublicKey == "" {
		return fmt.Errorf("%w: PUBLIC_KEY is required", ErrConfigurationMissing)
	}
	if _, err := decodePublicKey(c.PublicKey); err != nil {
		return fmt.Errorf("%w: PUBLIC_KEY: %v", ErrConfigurationMissing, err)
	}

	if c.Forward.URL == "" {
		return fmt.Errorf("%w: FORWARDING_URL is required", ErrConfigurationMissing)
	}
	u, err := url.Parse(c.Forward.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: FORWARDING_URL must be an absolute http(s) URL", ErrConfigurationMissing)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("%w: PORT is required", ErrConfigurationMissing)
	}
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("%w: PORT must be a number between 0 and 65535", ErrConfigurationMissing)
	}

	if c.Server.RoutePath == "" || c.Server.RoutePath[0] != '/' {
		return fmt.Errorf("%w: route path must start with '/'", ErrConfigurationMissing)
	}
	if c.Server.RoutePath == "/health" {
		return fmt.Errorf("%w: route path conflicts with /health", ErrConfigurationMissing)
	}

	if c.Server.MaxBodySize <= 0 {
		return fmt.Errorf("%w: max body size must be greater than 0", ErrConfigurationMissing)
	}

	if c.Forward.Timeout <= 0 {
		return fmt.Errorf("%w: forward timeout must be greater than 0", ErrConfigurationMissing)
	}

	if c.Forward.MaxResponseBodySize <= 0 {
		return fmt.Errorf("%w: max response body size must be greater than 0", ErrConfigurationMissing)
	}

	if c.Replay.Enabled {
		if c.Replay.Type != "redis" && c.Replay.Type != "memory" {
			return fmt.Errorf("%w: invalid replay cache type: %s (must be 'redis' or 'memory')", ErrConfigurationMissing, c.Replay.Type)
		}

		if c.Replay.Type == "redis" && c.Replay.Redis.Address == "" {
			return fmt.Errorf("%w: Redis address is required when using Redis replay cache", ErrConfigurationMissing)
		}

		if c.Replay.TTL <= 0 {
			return fmt.Errorf("%w: replay TTL must be greater than 0", ErrConfigurationMissing)
		}
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.Threshold < 0 || c.CircuitBreaker.Threshold > 1 {
			return fmt.Errorf("%w: circuit breaker threshold must be between 0 and 1", ErrConfigurationMissing)
		}
		if c.CircuitBreaker.MaxRequests <= 0 {
			return fmt.Errorf("%w: circuit breaker max requests must be greater than 0", ErrConfigurationMissing)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Path == "" || c.Metrics.Path[0] != '/' {
			return fmt.Errorf("%w: metrics path must start with '/'", ErrConfigurationMissing)
		}
		if c.Metrics.Path == c.Server.RoutePath {
			return fmt.Errorf("%w: metrics path conflicts with route path", ErrConfigurationMissing)
		}
		if c.Metrics.Path == "/health" {
			return fmt.Errorf("%w: metrics path conflicts with /health", ErrConfigurationMissing)
		}
	}

	return nil
}
