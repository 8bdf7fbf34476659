package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"distributor/internal/engine"
	"distributor/internal/testutil"
)

// fakeProber answers probes from a mutable per-URL table.
// URLs not in the table are healthy.
type fakeProber struct {
	mu   sync.Mutex
	down map[string]bool
}

func (f *fakeProber) Probe(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[url] {
		return errors.New("probe failed")
	}
	return nil
}

func (f *fakeProber) setDown(url string, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down == nil {
		f.down = make(map[string]bool)
	}
	f.down[url] = down
}

func healthyFlag(r *engine.Registry, name string) func() bool {
	return func() bool {
		for _, t := range r.Snapshot().Targets {
			if t.Name == name {
				return t.Healthy
			}
		}
		return false
	}
}

func newTestMonitor(t *testing.T, r *engine.Registry, p Prober) *Monitor {
	t.Helper()
	m := NewMonitor(MonitorConfig{
		Interval:     10 * time.Millisecond,
		ProbeTimeout: 100 * time.Millisecond,
	}, r, p, nil)
	m.Start()
	t.Cleanup(m.Stop)
	return m
}

func TestMonitor_DetectsFailureAndRecovery(t *testing.T) {
	t.Parallel()
	r := engine.NewRegistry()
	r.Register("a", "http://a/analyze", 0.5)
	r.Register("b", "http://b/analyze", 0.5)
	prober := &fakeProber{}
	newTestMonitor(t, r, prober)

	// Poll faster than the 10ms sweep so transitions are observed promptly.
	prober.setDown("http://a/analyze", true)
	testutil.MustWaitFor(t, func() bool { return !healthyFlag(r, "a")() },
		testutil.WithInterval(2*time.Millisecond))

	if !healthyFlag(r, "b")() {
		t.Error("healthy target must stay healthy")
	}

	prober.setDown("http://a/analyze", false)
	testutil.MustWaitFor(t, healthyFlag(r, "a"),
		testutil.WithInterval(2*time.Millisecond))
}

func TestMonitor_ProbeTimeoutMarksUnhealthy(t *testing.T) {
	t.Parallel()
	r := engine.NewRegistry()
	r.Register("slow", "http://slow/analyze", 1)

	slow := proberFunc(func(ctx context.Context, url string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	newTestMonitor(t, r, slow)

	testutil.MustWaitFor(t, func() bool { return !healthyFlag(r, "slow")() })
}

type proberFunc func(ctx context.Context, url string) error

func (f proberFunc) Probe(ctx context.Context, url string) error {
	return f(ctx, url)
}

func TestMonitor_StopTerminates(t *testing.T) {
	t.Parallel()
	r := engine.NewRegistry()
	r.Register("a", "http://a/analyze", 1)
	m := NewMonitor(MonitorConfig{Interval: 5 * time.Millisecond}, r, &fakeProber{}, nil)
	m.Start()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestMonitorConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg := MonitorConfig{}.withDefaults()
	if cfg.Interval != 5*time.Second {
		t.Errorf("expected 5s interval, got %s", cfg.Interval)
	}
	if cfg.ProbeTimeout != 2*time.Second {
		t.Errorf("expected 2s probe timeout, got %s", cfg.ProbeTimeout)
	}
}
