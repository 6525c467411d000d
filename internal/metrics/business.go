package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Domains label which part of the service an operation belongs to.
const (
	DomainConnections = "connections"
	DomainScheduler   = "scheduler"
)

// Generic outcomes. The scheduler adds its own job outcomes such as "retryable".
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// operationBuckets span a local decrypt up to a provider upload bounded by the
// publish timeout.
var operationBuckets = []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// StatusOf maps an operation error to StatusSuccess or StatusError.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// BusinessMetrics records connection and scheduler operations.
type BusinessMetrics interface {
	// RecordOperation counts one operation, e.g. ("connections", "connection_credentials", "success").
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes how long an operation took, in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
}

type otelBusinessMetrics struct {
	operations metric.Int64Counter
	durations  metric.Float64Histogram
}

// NewBusinessMetrics creates the operation counter and duration histogram on p.
func NewBusinessMetrics(p *Provider) (BusinessMetrics, error) {
	meter := p.meter()

	operations, opErr := meter.Int64Counter(
		p.name("operations_total"),
		metric.WithDescription("Connection and scheduler operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	durations, durErr := meter.Float64Histogram(
		p.name("operation_duration_seconds"),
		metric.WithDescription("Connection and scheduler operation latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(operationBuckets...),
	)
	if err := errors.Join(opErr, durErr); err != nil {
		return nil, fmt.Errorf("failed to create business instruments: %w", err)
	}

	return &otelBusinessMetrics{operations: operations, durations: durations}, nil
}

func (b *otelBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1, operationAttrs(domain, operation, status))
}

func (b *otelBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(), operationAttrs(domain, operation, status))
}

func operationAttrs(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

type noopBusinessMetrics struct{}

// NewNoOpBusinessMetrics returns a recorder that drops everything. It is used
// when metrics are disabled.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return noopBusinessMetrics{}
}

func (noopBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (noopBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}
