// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"
	"time"
)

// MetricsRecorder provides an interface for recording application metrics.
// This allows the application layer to record metrics without depending on
// specific telemetry implementations.
type MetricsRecorder interface {
	// RecordUsersInserted records rows persisted by a committed batch.
	// strategy is "medium" or "massive".
	RecordUsersInserted(ctx context.Context, strategy string, count int64)

	// RecordFlush records one flush of a batched session and the rows it sent.
	RecordFlush(ctx context.Context, rows int64)

	// RecordCallDuration records the elapsed time of an intercepted service call.
	RecordCallDuration(ctx context.Context, method string, duration time.Duration, failed bool)
}
