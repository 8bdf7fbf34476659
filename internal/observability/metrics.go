package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/deliveries take
// - Traffic: Packet throughput
// - Errors: Rate of failed deliveries and rejections
// - Saturation: Intake buffer occupancy
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Intake metrics (Traffic, Errors, Saturation)
	IntakeReceived metric.Int64Counter
	IntakeAccepted metric.Int64Counter
	IntakeRejected metric.Int64Counter
	IntakeDepth    metric.Int64Gauge

	// Dispatch metrics (Latency, Traffic, Errors)
	DispatchDuration  metric.Float64Histogram
	DispatchDelivered metric.Int64Counter
	DispatchExhausted metric.Int64Counter
	DispatchNoTargets metric.Int64Counter
	DispatchRetries   metric.Int64Counter

	// Health metrics
	HealthTransitions metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("distributor")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Intake metrics
	m.IntakeReceived, err = meter.Int64Counter(
		"intake_received_total",
		metric.WithDescription("Total packets offered to the intake buffer"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.IntakeAccepted, err = meter.Int64Counter(
		"intake_accepted_total",
		metric.WithDescription("Total packets accepted into the intake buffer"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.IntakeRejected, err = meter.Int64Counter(
		"intake_rejected_total",
		metric.WithDescription("Total packets rejected because the buffer was full"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.IntakeDepth, err = meter.Int64Gauge(
		"intake_depth",
		metric.WithDescription("Current number of packets in the intake buffer (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Dispatch metrics
	m.DispatchDuration, err = meter.Float64Histogram(
		"dispatch_duration_seconds",
		metric.WithDescription("Packet delivery latency in seconds, including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchDelivered, err = meter.Int64Counter(
		"dispatch_delivered_total",
		metric.WithDescription("Total packets delivered to an analyzer"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchExhausted, err = meter.Int64Counter(
		"dispatch_exhausted_total",
		metric.WithDescription("Total packets dropped after exhausting attempts"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchNoTargets, err = meter.Int64Counter(
		"dispatch_no_targets_total",
		metric.WithDescription("Total packets dropped because no healthy analyzer was available"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchRetries, err = meter.Int64Counter(
		"dispatch_retries_total",
		metric.WithDescription("Total retry attempts across all dispatches"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Health metrics
	m.HealthTransitions, err = meter.Int64Counter(
		"health_transitions_total",
		metric.WithDescription("Total analyzer health state transitions"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordIntakeReceived records a packet offered to the intake buffer.
func (m *Metrics) RecordIntakeReceived(ctx context.Context) {
	m.IntakeReceived.Add(ctx, 1)
}

// RecordIntakeAccepted records a packet accepted into the buffer.
func (m *Metrics) RecordIntakeAccepted(ctx context.Context) {
	m.IntakeAccepted.Add(ctx, 1)
}

// RecordIntakeRejected records a packet rejected because the buffer was full.
func (m *Metrics) RecordIntakeRejected(ctx context.Context) {
	m.IntakeRejected.Add(ctx, 1)
}

// RecordDispatchDelivered records a successful delivery with its duration.
func (m *Metrics) RecordDispatchDelivered(ctx context.Context, target string, durationSeconds float64) {
	attrs := metric.WithAttributes(targetAttr(target))
	m.DispatchDelivered.Add(ctx, 1, attrs)
	m.DispatchDuration.Record(ctx, durationSeconds, attrs)
}

// RecordDispatchExhausted records a packet dropped after all attempts failed.
func (m *Metrics) RecordDispatchExhausted(ctx context.Context, target, reason string) {
	m.DispatchExhausted.Add(ctx, 1, metric.WithAttributes(targetAttr(target), reasonAttr(reason)))
}

// RecordDispatchNoTargets records a packet dropped with no eligible target.
func (m *Metrics) RecordDispatchNoTargets(ctx context.Context) {
	m.DispatchNoTargets.Add(ctx, 1)
}

// RecordDispatchRetries records retry attempts for one dispatch.
func (m *Metrics) RecordDispatchRetries(ctx context.Context, count int64) {
	m.DispatchRetries.Add(ctx, count)
}

// RecordQueueDepth records the current intake buffer occupancy.
func (m *Metrics) RecordQueueDepth(ctx context.Context, depth int64) {
	m.IntakeDepth.Record(ctx, depth)
}

// RecordHealthTransition records an analyzer changing health state.
func (m *Metrics) RecordHealthTransition(ctx context.Context, target string, healthy bool) {
	m.HealthTransitions.Add(ctx, 1, metric.WithAttributes(targetAttr(target), healthyAttr(healthy)))
}
