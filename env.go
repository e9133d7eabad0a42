package relay

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv builds a Config from environment variables. Files listed in
// envFiles (or ".env" when none are given) are loaded first if they exist;
// variables already set in the process environment win.
func LoadFromEnv(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	b := NewConfig().
		WithPublicKey(os.Getenv("PUBLIC_KEY")).
		WithForwardingURL(os.Getenv("FORWARDING_URL")).
		WithPort(os.Getenv("PORT"))

	cfg := b.config
	var err error

	cfg.Server.RoutePath = getEnv("ROUTE_PATH", cfg.Server.RoutePath)
	if cfg.Server.MaxBodySize, err = getInt64Env("MAX_BODY_SIZE", cfg.Server.MaxBodySize); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = getDurationEnv("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout); err != nil {
		return nil, err
	}

	if cfg.Forward.Timeout, err = getDurationEnv("FORWARD_TIMEOUT", cfg.Forward.Timeout); err != nil {
		return nil, err
	}
	if cfg.Forward.MaxResponseBodySize, err = getInt64Env("MAX_RESPONSE_BODY_SIZE", cfg.Forward.MaxResponseBodySize); err != nil {
		return nil, err
	}

	if cfg.Replay.Enabled, err = getBoolEnv("REPLAY_PROTECTION_ENABLED", cfg.Replay.Enabled); err != nil {
		return nil, err
	}
	cfg.Replay.Type = getEnv("REPLAY_CACHE_TYPE", cfg.Replay.Type)
	if cfg.Replay.TTL, err = getDurationEnv("REPLAY_TTL", cfg.Replay.TTL); err != nil {
		return nil, err
	}
	cfg.Replay.Redis.Address = getEnv("REDIS_ADDRESS", "")
	cfg.Replay.Redis.Password = getEnv("REDIS_PASSWORD", "")
	db, err := getInt64Env("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.Replay.Redis.DB = int(db)
	if cfg.Replay.Redis.EnableTLS, err = getBoolEnv("REDIS_TLS", false); err != nil {
		return nil, err
	}

	if cfg.CircuitBreaker.Enabled, err = getBoolEnv("CIRCUIT_BREAKER_ENABLED", cfg.CircuitBreaker.Enabled); err != nil {
		return nil, err
	}
	maxRequests, err := getInt64Env("CIRCUIT_BREAKER_MAX_REQUESTS", int64(cfg.CircuitBreaker.MaxRequests))
	if err != nil {
		return nil, err
	}
	cfg.CircuitBreaker.MaxRequests = int(maxRequests)
	if cfg.CircuitBreaker.Interval, err = getDurationEnv("CIRCUIT_BREAKER_INTERVAL", cfg.CircuitBreaker.Interval); err != nil {
		return nil, err
	}
	if cfg.CircuitBreaker.Timeout, err = getDurationEnv("CIRCUIT_BREAKER_TIMEOUT", cfg.CircuitBreaker.Timeout); err != nil {
		return nil, err
	}
	if cfg.CircuitBreaker.Threshold, err = getFloatEnv("CIRCUIT_BREAKER_THRESHOLD", cfg.CircuitBreaker.Threshold); err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled, err = getBoolEnv("METRICS_ENABLED", cfg.Metrics.Enabled); err != nil {
		return nil, err
	}
	cfg.Metrics.Path = getEnv("METRICS_PATH", cfg.Metrics.Path)

	cfg.Logging.Level = getEnv("LOG_LEVEL", defaultLogLevel())
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	return b.Build()
}

// defaultLogLevel is info in production and debug elsewhere.
func defaultLogLevel() string {
	env := getEnv("APP_ENV", os.Getenv("NODE_ENV"))
	if strings.EqualFold(env, "production") {
		return "info"
	}
	return "debug"
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer: %v", ErrConfigurationMissing, key, err)
	}
	return n, nil
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number: %v", ErrConfigurationMissing, key, err)
	}
	return f, nil
}

func getBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean: %v", ErrConfigurationMissing, key, err)
	}
	return b, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a duration: %v", ErrConfigurationMissing, key, err)
	}
	return d, nil
}
