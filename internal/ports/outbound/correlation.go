package outbound

import "context"

// CorrelationSource extracts a correlation identifier from the ambient
// tracing context carried by ctx.
type CorrelationSource interface {
	// CorrelationID returns the identifier and true when a trace is active.
	CorrelationID(ctx context.Context) (string, bool)
}
