// Package shared provides shared utilities and instrumentation for application services.
package shared

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/archon-research/stl/user-batch/internal/ports/outbound"
)

// Compile-time assertion that AppTelemetry implements MetricsRecorder.
var _ outbound.MetricsRecorder = (*AppTelemetry)(nil)

const (
	// instrumentationName is the name used for OpenTelemetry instrumentation.
	instrumentationName = "github.com/archon-research/stl/user-batch/internal/services"
)

// AppTelemetry provides OpenTelemetry metrics for application-level events:
// rows persisted per strategy, batch flushes and intercepted call latency.
type AppTelemetry struct {
	meter metric.Meter

	usersInserted metric.Int64Counter
	flushesTotal  metric.Int64Counter
	flushRows     metric.Int64Histogram
	callDuration  metric.Float64Histogram
}

// NewAppTelemetry creates a new AppTelemetry instance with OpenTelemetry instrumentation.
// Uses the global meter provider by default.
func NewAppTelemetry() (*AppTelemetry, error) {
	return NewAppTelemetryWithProvider(otel.GetMeterProvider())
}

// NewAppTelemetryWithProvider creates a new AppTelemetry instance with a custom meter provider.
func NewAppTelemetryWithProvider(mp metric.MeterProvider) (*AppTelemetry, error) {
	meter := mp.Meter(instrumentationName)

	t := &AppTelemetry{
		meter: meter,
	}

	var err error

	t.usersInserted, err = meter.Int64Counter(
		"users.inserted.total",
		metric.WithDescription("Total number of user rows committed by batch inserts"),
	)
	if err != nil {
		return nil, err
	}

	t.flushesTotal, err = meter.Int64Counter(
		"users.batch.flushes.total",
		metric.WithDescription("Total number of batched-session flushes"),
	)
	if err != nil {
		return nil, err
	}

	t.flushRows, err = meter.Int64Histogram(
		"users.batch.flush.rows",
		metric.WithDescription("Rows sent per batched-session flush"),
	)
	if err != nil {
		return nil, err
	}

	t.callDuration, err = meter.Float64Histogram(
		"service.call.duration",
		metric.WithDescription("Elapsed time of intercepted service calls"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// RecordUsersInserted records rows committed by one batch call.
func (t *AppTelemetry) RecordUsersInserted(ctx context.Context, strategy string, count int64) {
	t.usersInserted.Add(ctx, count, metric.WithAttributes(
		attribute.String("batch.strategy", strategy),
	))
}

// RecordFlush records one flush and the number of rows it sent.
func (t *AppTelemetry) RecordFlush(ctx context.Context, rows int64) {
	t.flushesTotal.Add(ctx, 1)
	t.flushRows.Record(ctx, rows)
}

// RecordCallDuration records the latency of an intercepted call.
func (t *AppTelemetry) RecordCallDuration(ctx context.Context, method string, duration time.Duration, failed bool) {
	t.callDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(
		attribute.String("call.method", method),
		attribute.Bool("call.failed", failed),
	))
}
