// Package observability provides metrics and logging utilities.
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrMethod  = "method"
	attrPath    = "path"
	attrStatus  = "status"
	attrTarget  = "target"
	attrReason  = "reason"
	attrHealthy = "healthy"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, path)
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

// targetAttr carries the analyzer name. The target set is small and
// fixed by configuration, so cardinality stays bounded.
func targetAttr(target string) attribute.KeyValue {
	return attribute.String(attrTarget, target)
}

func reasonAttr(reason string) attribute.KeyValue {
	return attribute.String(attrReason, reason)
}

func healthyAttr(healthy bool) attribute.KeyValue {
	return attribute.Bool(attrHealthy, healthy)
}

// WithTarget returns a metric option with the target attribute.
func WithTarget(target string) metric.MeasurementOption {
	return metric.WithAttributes(targetAttr(target))
}

// WithStatus returns a metric option with the status attribute.
func WithStatus(code int) metric.MeasurementOption {
	return metric.WithAttributes(statusAttr(code))
}
