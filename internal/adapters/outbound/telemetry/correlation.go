package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/archon-research/stl/user-batch/internal/ports/outbound"
)

// Compile-time check that SpanCorrelation implements outbound.CorrelationSource
var _ outbound.CorrelationSource = SpanCorrelation{}

// SpanCorrelation reads the correlation identifier from the OpenTelemetry span
// carried by the context. The identifier is the hex trace ID, which is what
// trace backends index by.
type SpanCorrelation struct{}

// CorrelationID returns the trace ID of the active span, if the span context is valid.
func (SpanCorrelation) CorrelationID(ctx context.Context) (string, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return "", false
	}
	return sc.TraceID().String(), true
}
