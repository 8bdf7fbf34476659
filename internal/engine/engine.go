// Package engine implements the dispatch core: a bounded intake
// buffer, a worker pool, weighted target selection over a mutable
// health set, and retry with backoff across distinct targets.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"distributor/internal/apperrors"
)

// MetricsRecorder is an optional interface for recording engine metrics.
type MetricsRecorder interface {
	RecordIntakeReceived(ctx context.Context)
	RecordIntakeAccepted(ctx context.Context)
	RecordIntakeRejected(ctx context.Context)
	RecordDispatchDelivered(ctx context.Context, target string, durationSeconds float64)
	RecordDispatchExhausted(ctx context.Context, target, reason string)
	RecordDispatchNoTargets(ctx context.Context)
	RecordDispatchRetries(ctx context.Context, count int64)
	RecordQueueDepth(ctx context.Context, depth int64)
}

// Engine owns the intake buffer, the worker pool, and the dispatcher.
// Constructed once at startup; all state is scoped to the value.
type Engine struct {
	config     Config
	registry   *Registry
	intake     *intake
	dispatcher *dispatcher
	stats      statistics
	metrics    MetricsRecorder
	logger     *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// New validates the configuration and target set, then starts the
// worker pool. The registry must already hold the configured targets.
func New(cfg Config, registry *Registry, tr Transport, metrics MetricsRecorder) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if registry.TotalWeight() <= 0 {
		return nil, apperrors.Config("targets", "total target weight must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		config:     cfg,
		registry:   registry,
		intake:     newIntake(cfg.Capacity),
		dispatcher: newDispatcher(cfg, registry, tr),
		metrics:    metrics,
		logger:     slog.With("component", "engine"),
		baseCtx:    ctx,
		cancel:     cancel,
		shutdown:   make(chan struct{}),
	}

	e.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go e.worker()
	}

	if metrics != nil {
		go e.reportQueueDepth()
	}

	e.logger.Info("Engine started",
		"workers", cfg.Workers, "capacity", cfg.Capacity,
		"retries", cfg.Retries, "targets", len(registry.Names()))
	return e, nil
}

// Offer places a packet into the intake buffer without blocking.
// Returns ErrOverloaded when the buffer is full and ErrClosed during
// shutdown. Overload is expected under load and never logged as error.
func (e *Engine) Offer(p *Packet) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.stats.received.Add(1)
	if e.metrics != nil {
		e.metrics.RecordIntakeReceived(e.baseCtx)
	}

	if err := e.intake.offer(p); err != nil {
		if errors.Is(err, ErrOverloaded) {
			e.stats.rejectedOverload.Add(1)
			if e.metrics != nil {
				e.metrics.RecordIntakeRejected(e.baseCtx)
			}
			e.logger.Warn("Packet rejected, buffer full", "packet_id", p.ID, "depth", e.intake.depth())
		}
		return err
	}

	e.stats.accepted.Add(1)
	if e.metrics != nil {
		e.metrics.RecordIntakeAccepted(e.baseCtx)
	}
	return nil
}

// Ready reports whether the engine can make progress: it is running
// and at least one healthy positive-weight target exists.
func (e *Engine) Ready(ctx context.Context) error {
	if e.closed.Load() {
		return errors.New("engine is closed")
	}
	if e.registry.Snapshot().HealthyWeight <= 0 {
		return errors.New("no healthy targets")
	}
	return nil
}

// Stats returns a snapshot of all engine counters.
func (e *Engine) Stats() Stats {
	breakers := e.dispatcher.breakers.Stats()

	perTarget := make(map[string]TargetStats)
	for name, c := range e.registry.Counters() {
		perTarget[name] = TargetStats{
			Delivered: c.Delivered,
			Failed:    c.Failed,
			Healthy:   c.Healthy,
		}
	}

	return Stats{
		Received:         e.stats.received.Load(),
		Accepted:         e.stats.accepted.Load(),
		RejectedOverload: e.stats.rejectedOverload.Load(),
		Delivered:        e.stats.delivered.Load(),
		FailedExhausted:  e.stats.failedExhausted.Load(),
		NoTargets:        e.stats.noTargets.Load(),
		RetriesTotal:     e.stats.retriesTotal.Load(),
		Depth:            e.intake.depth(),
		Workers:          e.config.Workers,
		Capacity:         e.config.Capacity,
		BreakersOpen:     breakers.Open,
		PerTarget:        perTarget,
	}
}

// Close shuts the engine down: new offers fail, workers drain the
// buffer, and once the context expires any in-flight sends and backoff
// waits are cancelled.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil // already closed
	}

	e.intake.close()
	e.logger.Info("Engine shutting down", "queued", e.intake.depth())
	close(e.shutdown)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		e.logger.Info("Engine shutdown complete",
			"delivered", e.stats.delivered.Load(),
			"failed", e.stats.failedExhausted.Load(),
			"no_targets", e.stats.noTargets.Load())
		return nil
	case <-ctx.Done():
		e.cancel()
		e.logger.Warn("Engine shutdown timed out", "remaining", e.intake.depth())
		return ctx.Err()
	}
}

// worker loops take -> dispatch -> record until the buffer is drained
// after shutdown. Dispatch outcomes never propagate past this loop.
func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		p, ok := e.intake.take(e.shutdown)
		if !ok {
			return
		}
		e.process(p)
	}
}

func (e *Engine) process(p *Packet) {
	start := time.Now()
	result := e.dispatcher.dispatch(e.baseCtx, p, &e.stats)

	switch result.Outcome {
	case Delivered:
		e.stats.delivered.Add(1)
		if e.metrics != nil {
			e.metrics.RecordDispatchDelivered(e.baseCtx, result.Target, time.Since(start).Seconds())
		}
	case Exhausted:
		e.stats.failedExhausted.Add(1)
		if e.metrics != nil {
			e.metrics.RecordDispatchExhausted(e.baseCtx, result.Target, result.Reason)
		}
		e.logger.Warn("Packet dropped after exhausting attempts",
			"packet_id", p.ID, "target", result.Target,
			"attempts", result.Attempts, "reason", result.Reason)
	case NoTargets:
		e.stats.noTargets.Add(1)
		if e.metrics != nil {
			e.metrics.RecordDispatchNoTargets(e.baseCtx)
		}
		e.logger.Warn("Packet dropped, no eligible target", "packet_id", p.ID)
	}

	if e.metrics != nil && result.Attempts > 1 {
		e.metrics.RecordDispatchRetries(e.baseCtx, int64(result.Attempts-1))
	}
}

// reportQueueDepth periodically reports the intake depth metric.
func (e *Engine) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.shutdown:
			return
		case <-ticker.C:
			e.metrics.RecordQueueDepth(context.Background(), int64(e.intake.depth()))
		}
	}
}
