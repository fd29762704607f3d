package shared

import (
	"context"
	"log/slog"
	"time"

	"github.com/archon-research/stl/user-batch/internal/ports/outbound"
)

// NoTraceID is logged as the correlation id when no trace is active.
const NoTraceID = "no-trace-id"

// InterceptorConfig holds configuration for the call interceptor.
type InterceptorConfig struct {
	// SlowThreshold is the elapsed time above which a call is logged at WARN.
	// Default: 50ms
	SlowThreshold time.Duration

	// SlowMarker tags log records of calls slower than SlowThreshold.
	// Default: "slow-call"
	SlowMarker string

	// NormalMarker tags log records of all other calls.
	// Default: "call"
	NormalMarker string

	// Logger receives one record per intercepted call.
	Logger *slog.Logger

	// Correlation supplies the correlation id. If nil, NoTraceID is always used.
	Correlation outbound.CorrelationSource

	// Metrics optionally records call latency alongside the log record.
	Metrics outbound.MetricsRecorder
}

// InterceptorConfigDefaults returns a config with default values.
func InterceptorConfigDefaults() InterceptorConfig {
	return InterceptorConfig{
		SlowThreshold: 50 * time.Millisecond,
		SlowMarker:    "slow-call",
		NormalMarker:  "call",
		Logger:        slog.Default(),
	}
}

// Interceptor measures wrapped calls and logs each one exactly once,
// whatever the outcome. It never changes the result of the call.
//
// An Interceptor is safe for concurrent use.
type Interceptor struct {
	config InterceptorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewInterceptor creates an interceptor. Zero config fields take their defaults.
func NewInterceptor(config InterceptorConfig) *Interceptor {
	defaults := InterceptorConfigDefaults()
	if config.SlowThreshold <= 0 {
		config.SlowThreshold = defaults.SlowThreshold
	}
	if config.SlowMarker == "" {
		config.SlowMarker = defaults.SlowMarker
	}
	if config.NormalMarker == "" {
		config.NormalMarker = defaults.NormalMarker
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Interceptor{
		config: config,
		logger: config.Logger.With("component", "perf"),
		now:    time.Now,
	}
}

// Observe runs fn, then logs its duration. The error returned by fn is
// returned as is. If fn panics, the call is logged and the panic continues.
func (i *Interceptor) Observe(ctx context.Context, method string, fn func(ctx context.Context) error) (err error) {
	start := i.now()
	correlationID := i.correlationID(ctx)

	returned := false
	defer func() {
		i.emit(ctx, method, correlationID, i.now().Sub(start), err, !returned)
	}()

	err = fn(ctx)
	returned = true
	return err
}

// Call is Observe for functions that also return a value.
func Call[T any](ctx context.Context, i *Interceptor, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := i.Observe(ctx, method, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

func (i *Interceptor) correlationID(ctx context.Context) string {
	if i.config.Correlation == nil {
		return NoTraceID
	}
	if id, ok := i.config.Correlation.CorrelationID(ctx); ok && id != "" {
		return id
	}
	return NoTraceID
}

// emit writes the log record. A failing handler must not affect the caller.
func (i *Interceptor) emit(ctx context.Context, method, correlationID string, elapsed time.Duration, callErr error, panicked bool) {
	defer func() {
		_ = recover()
	}()

	level := slog.LevelDebug
	msg := "method completed"
	marker := i.config.NormalMarker
	if elapsed > i.config.SlowThreshold {
		level = slog.LevelWarn
		msg = "slow method"
		marker = i.config.SlowMarker
	}

	attrs := []slog.Attr{
		slog.String("correlation_id", correlationID),
		slog.String("method", method),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.String("marker", marker),
	}
	if callErr != nil {
		attrs = append(attrs, slog.String("error", callErr.Error()))
	}
	if panicked {
		attrs = append(attrs, slog.Bool("panicked", true))
	}

	i.logger.LogAttrs(ctx, level, msg, attrs...)

	if i.config.Metrics != nil {
		i.config.Metrics.RecordCallDuration(ctx, method, elapsed, callErr != nil || panicked)
	}
}
