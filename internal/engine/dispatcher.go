package engine

import (
	"context"
	"log/slog"
	"time"

	"distributor/pkg/backoff"
	"distributor/pkg/circuitbreaker"
	"distributor/pkg/transport"
)

// Transport delivers a packet body to a target URL. The production
// implementation is pkg/transport.Client; tests substitute fakes.
type Transport interface {
	// Send returns nil on 2xx, *transport.HTTPError on other statuses,
	// and a wrapped error on network failure or timeout.
	Send(ctx context.Context, url string, body []byte) error
}

// Outcome is the terminal classification of one dispatch.
type Outcome int

const (
	Delivered Outcome = iota // sent successfully
	Exhausted                // all attempts failed
	NoTargets                // no eligible target at selection time
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Exhausted:
		return "exhausted"
	case NoTargets:
		return "no_targets"
	default:
		return "unknown"
	}
}

// Failure reasons carried on Exhausted results.
const (
	ReasonClientError      = "client_error"
	ReasonRetriesExhausted = "retries_exhausted"
)

// Result describes how a dispatch ended. Target is the last target
// attempted (empty for NoTargets); Attempts counts transport calls.
type Result struct {
	Outcome  Outcome
	Target   string
	Attempts int
	Reason   string
}

// dispatcher places one packet with one target, retrying across
// distinct targets with exponential backoff.
type dispatcher struct {
	registry  *Registry
	transport Transport
	breakers  *circuitbreaker.Registry
	config    Config
	logger    *slog.Logger
}

func newDispatcher(cfg Config, registry *Registry, tr Transport) *dispatcher {
	return &dispatcher{
		registry:  registry,
		transport: tr,
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		config: cfg,
		logger: slog.With("component", "dispatcher"),
	}
}

// dispatch attempts delivery up to retries+1 times. Every attempt
// re-selects from a fresh registry snapshot minus the targets already
// tried, so a target that just turned unhealthy is naturally avoided.
// When every candidate has already failed once and attempts remain,
// previously failed targets become eligible again.
func (d *dispatcher) dispatch(ctx context.Context, p *Packet, stats *statistics) Result {
	maxAttempts := d.config.Retries + 1
	tried := make(map[string]bool)
	var last string

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			stats.retriesTotal.Add(1)
			select {
			case <-ctx.Done():
				return Result{Outcome: Exhausted, Target: last, Attempts: attempt, Reason: ReasonRetriesExhausted}
			case <-time.After(backoff.Exponential(attempt, &backoff.Config{Initial: d.config.BaseDelay})):
			}
		}

		t, ok := d.selectAvailable(tried)
		if !ok {
			return Result{Outcome: NoTargets, Attempts: attempt}
		}
		last = t.Name

		sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
		err := d.transport.Send(sendCtx, t.URL, p.Body)
		cancel()

		if err == nil {
			d.registry.RecordDelivered(t.Name)
			d.breakers.Get(t.Name).RecordSuccess()
			return Result{Outcome: Delivered, Target: t.Name, Attempts: attempt + 1}
		}

		d.registry.RecordFailed(t.Name)
		d.breakers.Get(t.Name).RecordFailure()

		if transport.IsClientError(err) {
			// Defective payload; no target can accept it.
			d.logger.Warn("Permanent delivery failure",
				"packet_id", p.ID, "target", t.Name, "error", err)
			return Result{Outcome: Exhausted, Target: t.Name, Attempts: attempt + 1, Reason: ReasonClientError}
		}

		tried[t.Name] = true
		d.logger.Warn("Delivery attempt failed",
			"packet_id", p.ID, "target", t.Name, "attempt", attempt+1, "error", err)
	}

	return Result{Outcome: Exhausted, Target: last, Attempts: maxAttempts, Reason: ReasonRetriesExhausted}
}

// selectAvailable draws a target whose circuit is not open, preferring
// targets not yet tried for this packet. Open breakers veto a target
// without consuming an attempt or touching the transport. Once every
// untried candidate is gone, already-tried targets are drawn again;
// breaker vetoes are never revisited.
func (d *dispatcher) selectAvailable(tried map[string]bool) (TargetView, bool) {
	vetoed := make(map[string]bool)
	excludeTried := true

	for {
		excluded := vetoed
		if excludeTried && len(tried) > 0 {
			excluded = make(map[string]bool, len(tried)+len(vetoed))
			for name := range tried {
				excluded[name] = true
			}
			for name := range vetoed {
				excluded[name] = true
			}
		}

		t, err := selectTarget(d.registry.Snapshot(), excluded)
		if err != nil {
			if excludeTried && len(tried) > 0 {
				excludeTried = false
				continue
			}
			return TargetView{}, false
		}
		if d.breakers.Get(t.Name).Allow() {
			return t, true
		}
		vetoed[t.Name] = true
	}
}
