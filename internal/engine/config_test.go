package engine

import (
	"errors"
	"testing"
	"time"

	"distributor/internal/apperrors"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}.withDefaults()

	if cfg.Workers != 10 {
		t.Errorf("expected 10 workers, got %d", cfg.Workers)
	}
	if cfg.Capacity != 5000 {
		t.Errorf("expected capacity 5000, got %d", cfg.Capacity)
	}
	if cfg.Retries != 0 {
		t.Errorf("zero retries must stay zero, got %d", cfg.Retries)
	}
	if cfg.BaseDelay != 500*time.Millisecond {
		t.Errorf("expected base delay 500ms, got %s", cfg.BaseDelay)
	}
	if cfg.SendTimeout != 5*time.Second {
		t.Errorf("expected send timeout 5s, got %s", cfg.SendTimeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	valid := Config{Workers: 1, Capacity: 1, Retries: 0, BaseDelay: time.Millisecond, SendTimeout: time.Second}
	if err := valid.validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }},
		{"negative retries", func(c *Config) { c.Retries = -1 }},
		{"zero base delay", func(c *Config) { c.BaseDelay = 0 }},
		{"negative send timeout", func(c *Config) { c.SendTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.validate(); !errors.Is(err, apperrors.ErrConfig) {
				t.Errorf("expected config error, got %v", err)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DISPATCH_WORKERS", "4")
	t.Setenv("DISPATCH_CAPACITY", "100")
	t.Setenv("DISPATCH_RETRIES", "1")
	t.Setenv("DISPATCH_BASE_DELAY", "250ms")
	t.Setenv("DISPATCH_SEND_TIMEOUT", "2s")

	cfg := LoadConfigFromEnv()
	if cfg.Workers != 4 || cfg.Capacity != 100 || cfg.Retries != 1 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.BaseDelay != 250*time.Millisecond || cfg.SendTimeout != 2*time.Second {
		t.Errorf("unexpected durations: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("DISPATCH_WORKERS", "")

	cfg := LoadConfigFromEnv()
	if cfg.Workers != 10 || cfg.Capacity != 5000 || cfg.Retries != 2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
