package health

import (
	"context"
	"errors"
	"testing"

	"distributor/internal/engine"
)

type fakeReadiness struct {
	err error
}

func (f *fakeReadiness) Ready(ctx context.Context) error {
	return f.err
}

func twoTargetRegistry(t *testing.T) *engine.Registry {
	t.Helper()
	r := engine.NewRegistry()
	r.Register("a", "http://a/analyze", 0.5)
	r.Register("b", "http://b/analyze", 0.5)
	return r
}

func TestChecker_Liveness(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil, nil)

	response := checker.Liveness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_NoEngine(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil, nil)

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}

	engineCheck, ok := response.Checks["engine"]
	if !ok {
		t.Fatal("Expected engine check to be present")
	}

	if engineCheck.Status != StatusUnhealthy {
		t.Errorf("Expected engine check to be unhealthy, got %s", engineCheck.Status)
	}
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&fakeReadiness{}, twoTargetRegistry(t))

	response := checker.Readiness(context.Background())
	if !response.IsHealthy() {
		t.Errorf("Expected ready, got %+v", response)
	}
	if got := response.Checks["targets"].Status; got != StatusHealthy {
		t.Errorf("Expected healthy targets check, got %s", got)
	}
}

func TestChecker_Readiness_EngineNotReady(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&fakeReadiness{err: errors.New("engine is closed")}, nil)

	response := checker.Readiness(context.Background())
	if response.Ready() {
		t.Fatal("Expected not ready")
	}
	if msg := response.Checks["engine"].Message; msg != "engine is closed" {
		t.Errorf("Expected check message to carry the cause, got %q", msg)
	}
}

func TestChecker_Readiness_PartialFleetIsDegraded(t *testing.T) {
	t.Parallel()
	registry := twoTargetRegistry(t)
	registry.SetHealth("b", false)
	checker := NewChecker(&fakeReadiness{}, registry)

	response := checker.Readiness(context.Background())

	if response.Status != StatusDegraded {
		t.Fatalf("Expected degraded status, got %s", response.Status)
	}
	if !response.Ready() {
		t.Error("Degraded service must stay in rotation")
	}
	targets := response.Checks["targets"]
	if targets.Status != StatusDegraded {
		t.Errorf("Expected degraded targets check, got %s", targets.Status)
	}
	if targets.Message != "1/2 targets healthy" {
		t.Errorf("Expected fleet summary message, got %q", targets.Message)
	}
}

func TestChecker_Readiness_NoHealthyTargets(t *testing.T) {
	t.Parallel()
	registry := twoTargetRegistry(t)
	registry.SetHealth("a", false)
	registry.SetHealth("b", false)
	checker := NewChecker(&fakeReadiness{}, registry)

	response := checker.Readiness(context.Background())

	if response.Ready() {
		t.Fatal("Expected not ready with an empty fleet")
	}
	if got := response.Checks["targets"].Message; got != "0/2 targets healthy" {
		t.Errorf("Expected fleet summary message, got %q", got)
	}
}

func TestChecker_SetShuttingDown(t *testing.T) {
	t.Parallel()
	checker := NewChecker(&fakeReadiness{}, nil)

	if response := checker.Readiness(context.Background()); !response.IsHealthy() {
		t.Fatalf("Expected ready before shutdown, got %+v", response)
	}

	checker.SetShuttingDown()

	response := checker.Readiness(context.Background())
	if response.Ready() {
		t.Fatal("Expected unhealthy after SetShuttingDown")
	}
	if _, ok := response.Checks["shutdown"]; !ok {
		t.Error("Expected shutdown check to be present")
	}
}

func TestResponse_Status(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  Status
		healthy bool
		ready   bool
	}{
		{"healthy", StatusHealthy, true, true},
		{"unhealthy", StatusUnhealthy, false, false},
		{"degraded", StatusDegraded, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			response := &Response{Status: tt.status}
			if response.IsHealthy() != tt.healthy {
				t.Errorf("IsHealthy() = %v, want %v", response.IsHealthy(), tt.healthy)
			}
			if response.Ready() != tt.ready {
				t.Errorf("Ready() = %v, want %v", response.Ready(), tt.ready)
			}
		})
	}
}
