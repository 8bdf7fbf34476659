package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"distributor/internal/config"
	"distributor/internal/engine"
)

// Prober checks whether the analyzer behind a URL is alive.
// Implemented by pkg/transport.Client.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// TransitionRecorder is an optional interface for recording health
// state transitions.
type TransitionRecorder interface {
	RecordHealthTransition(ctx context.Context, target string, healthy bool)
}

// MonitorConfig holds health monitor configuration.
type MonitorConfig struct {
	Interval     time.Duration // probe loop period (default: 5s)
	ProbeTimeout time.Duration // per-probe timeout (default: 2s)
}

// LoadMonitorConfigFromEnv loads monitor configuration from environment variables.
func LoadMonitorConfigFromEnv() MonitorConfig {
	cfg := MonitorConfig{
		Interval:     config.GetDurationEnv("HEALTH_INTERVAL", 5*time.Second),
		ProbeTimeout: config.GetDurationEnv("HEALTH_PROBE_TIMEOUT", 2*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	return c
}

// Monitor periodically probes every registered target and writes the
// results into the registry. Detection latency is bounded by
// Interval + ProbeTimeout; the dispatcher's retry-with-exclusion
// covers the window in between.
type Monitor struct {
	registry *engine.Registry
	prober   Prober
	config   MonitorConfig
	metrics  TransitionRecorder
	logger   *slog.Logger

	shutdown chan struct{}
	done     chan struct{}
}

// NewMonitor creates a health monitor. Call Start to begin probing.
func NewMonitor(cfg MonitorConfig, registry *engine.Registry, prober Prober, metrics TransitionRecorder) *Monitor {
	return &Monitor{
		registry: registry,
		prober:   prober,
		config:   cfg.withDefaults(),
		metrics:  metrics,
		logger:   slog.With("component", "health-monitor"),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the probe loop. The first sweep runs immediately so
// a dead target configured at startup is caught before the first tick.
func (m *Monitor) Start() {
	go m.run()
	m.logger.Info("Health monitor started",
		"interval", m.config.Interval, "probe_timeout", m.config.ProbeTimeout)
}

// Stop terminates the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.shutdown)
	<-m.done
	m.logger.Info("Health monitor stopped")
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.sweep()
	for {
		select {
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep probes all targets in parallel and records the results.
func (m *Monitor) sweep() {
	snap := m.registry.Snapshot()

	var wg sync.WaitGroup
	wg.Add(len(snap.Targets))
	for _, t := range snap.Targets {
		go func(t engine.TargetView) {
			defer wg.Done()
			m.probe(t)
		}(t)
	}
	wg.Wait()
}

func (m *Monitor) probe(t engine.TargetView) {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ProbeTimeout)
	defer cancel()

	err := m.prober.Probe(ctx, t.URL)
	healthy := err == nil

	changed, serr := m.registry.SetHealth(t.Name, healthy)
	if serr != nil {
		m.logger.Error("Health update failed", "target", t.Name, "error", serr)
		return
	}
	if !changed {
		return
	}

	if healthy {
		m.logger.Info("Target recovered", "target", t.Name)
	} else {
		m.logger.Warn("Target unhealthy", "target", t.Name, "error", err)
	}
	if m.metrics != nil {
		m.metrics.RecordHealthTransition(context.Background(), t.Name, healthy)
	}
}
