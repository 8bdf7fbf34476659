package engine

import (
	"fmt"
	"time"

	"distributor/internal/apperrors"
	"distributor/internal/config"
)

// Breaker tuning is hardcoded - these rarely need adjusting.
const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// Config holds dispatch engine configuration.
type Config struct {
	Workers     int           // concurrent dispatch goroutines (default: 10)
	Capacity    int           // intake buffer size (default: 5000)
	Retries     int           // additional attempts after the first (default: 2)
	BaseDelay   time.Duration // first backoff interval, doubles per retry (default: 500ms)
	SendTimeout time.Duration // per-attempt transport timeout (default: 5s)
}

// LoadConfigFromEnv loads engine configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Workers:     config.GetIntEnv("DISPATCH_WORKERS", 10),
		Capacity:    config.GetIntEnv("DISPATCH_CAPACITY", 5000),
		Retries:     config.GetIntEnv("DISPATCH_RETRIES", 2),
		BaseDelay:   config.GetDurationEnv("DISPATCH_BASE_DELAY", 500*time.Millisecond),
		SendTimeout: config.GetDurationEnv("DISPATCH_SEND_TIMEOUT", 5*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults. Retries is the one
// field where zero is meaningful (single attempt), so it is left alone.
func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = 10
	}
	if c.Capacity == 0 {
		c.Capacity = 5000
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = 5 * time.Second
	}
	return c
}

// validate rejects values that cannot run. Called at engine construction.
func (c Config) validate() error {
	if c.Workers < 1 {
		return apperrors.Config("workers", fmt.Sprintf("workers must be >= 1, got %d", c.Workers))
	}
	if c.Capacity < 1 {
		return apperrors.Config("capacity", fmt.Sprintf("capacity must be >= 1, got %d", c.Capacity))
	}
	if c.Retries < 0 {
		return apperrors.Config("retries", fmt.Sprintf("retries must be >= 0, got %d", c.Retries))
	}
	if c.BaseDelay <= 0 {
		return apperrors.Config("base_delay", fmt.Sprintf("base delay must be positive, got %s", c.BaseDelay))
	}
	if c.SendTimeout <= 0 {
		return apperrors.Config("send_timeout", fmt.Sprintf("send timeout must be positive, got %s", c.SendTimeout))
	}
	return nil
}
