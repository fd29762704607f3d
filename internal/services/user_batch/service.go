// Package user_batch persists collections of users with one of two strategies:
// a single multi-row statement for medium batches, or a dedicated batched
// session that flushes in chunks and commits once for massive batches.
package user_batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/archon-research/stl/user-batch/internal/domain/entity"
	"github.com/archon-research/stl/user-batch/internal/ports/inbound"
	"github.com/archon-research/stl/user-batch/internal/ports/outbound"
)

const (
	// tracerName is the instrumentation name for this service.
	tracerName = "github.com/archon-research/stl/user-batch/internal/services/user_batch"

	StrategyMedium  = "medium"
	StrategyMassive = "massive"
)

// Compile-time check that Service implements inbound.UserBatchService
var _ inbound.UserBatchService = (*Service)(nil)

var (
	// ErrDataAccess wraps failures reported by the store: statement errors,
	// constraint violations, flush and commit failures.
	ErrDataAccess = errors.New("data access failure")

	// ErrResource wraps failures to acquire a transaction or batch session.
	ErrResource = errors.New("resource acquisition failure")
)

// FlushBoundary selects when the massive-batch strategy flushes queued inserts.
type FlushBoundary string

const (
	// FlushAligned flushes after every ChunkSize queued inserts and drains a
	// non-empty remainder at the end: ceil(N/ChunkSize) flushes.
	FlushAligned FlushBoundary = "aligned"

	// FlushLegacy flushes when the 0-based index i satisfies
	// i%ChunkSize == 0 && i > 0, so the first flush carries ChunkSize+1
	// inserts, and always issues a final flush.
	FlushLegacy FlushBoundary = "legacy"
)

// ServiceConfig holds configuration for the batch insert service.
type ServiceConfig struct {
	// ChunkSize is the number of queued inserts per flush in the massive strategy.
	// Default: 1000
	ChunkSize int

	// FlushBoundary selects the flush trigger. Default: FlushAligned.
	FlushBoundary FlushBoundary

	// MediumBatchMax is the largest input Insert sends as a single statement.
	// Larger inputs use the massive strategy. Default: 1000
	MediumBatchMax int

	// FlushRate caps flushes per second in the massive strategy. 0 disables throttling.
	FlushRate float64

	// Logger for the service.
	Logger *slog.Logger

	// Metrics records rows and flushes. Optional.
	Metrics outbound.MetricsRecorder
}

// ServiceConfigDefaults returns a config with default values.
func ServiceConfigDefaults() ServiceConfig {
	return ServiceConfig{
		ChunkSize:      1000,
		FlushBoundary:  FlushAligned,
		MediumBatchMax: 1000,
		Logger:         slog.Default(),
	}
}

// Service is a stateless facade over the user gateway. Each call runs in its
// own transaction or batch session, so concurrent calls share nothing.
type Service struct {
	config    ServiceConfig
	logger    *slog.Logger
	txManager outbound.TxManager
	gateway   outbound.UserGateway
	sessions  outbound.BatchSessionFactory
	limiter   *rate.Limiter
}

// NewService creates a new batch insert service.
func NewService(config ServiceConfig, txManager outbound.TxManager, gateway outbound.UserGateway, sessions outbound.BatchSessionFactory) (*Service, error) {
	if txManager == nil {
		return nil, fmt.Errorf("txManager is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("batch session factory is required")
	}

	defaults := ServiceConfigDefaults()
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	if config.FlushBoundary == "" {
		config.FlushBoundary = defaults.FlushBoundary
	}
	if config.FlushBoundary != FlushAligned && config.FlushBoundary != FlushLegacy {
		return nil, fmt.Errorf("unknown flush boundary %q (must be %q or %q)", config.FlushBoundary, FlushAligned, FlushLegacy)
	}
	if config.MediumBatchMax <= 0 {
		config.MediumBatchMax = defaults.MediumBatchMax
	}
	if config.FlushRate < 0 {
		return nil, fmt.Errorf("flush rate must not be negative, got %v", config.FlushRate)
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	s := &Service{
		config:    config,
		logger:    config.Logger.With("component", "user-batch"),
		txManager: txManager,
		gateway:   gateway,
		sessions:  sessions,
	}
	if config.FlushRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.FlushRate), 1)
	}
	return s, nil
}

// InsertMediumBatch persists all users with one multi-row INSERT inside one
// transaction. Either every user is stored or none is.
func (s *Service) InsertMediumBatch(ctx context.Context, users []*entity.User) (err error) {
	if len(users) == 0 {
		return nil
	}
	if err := validateAll(users); err != nil {
		return err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "user_batch.InsertMediumBatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("batch.size", len(users))),
	)
	defer func() { endSpan(span, err) }()

	var inserted int64
	started := false
	err = s.txManager.WithTransaction(ctx, func(tx pgx.Tx) error {
		started = true
		n, err := s.gateway.InsertBatch(ctx, tx, users)
		if err != nil {
			return fmt.Errorf("%w: insert batch of %d users: %w", ErrDataAccess, len(users), err)
		}
		inserted = n
		return nil
	})
	if err != nil {
		return classifyTxError(err, started, "medium batch")
	}

	s.recordInserted(ctx, StrategyMedium, inserted)
	s.logger.Debug("medium batch committed", "users", len(users), "rows", inserted)
	return nil
}

// InsertMassiveBatch persists users through a dedicated batch session. Inserts
// are queued in input order, flushed per chunk and committed once. Any failure
// rolls back every chunk of the call; the session is closed on every path.
func (s *Service) InsertMassiveBatch(ctx context.Context, users []*entity.User) (err error) {
	if len(users) == 0 {
		return nil
	}
	if err := validateAll(users); err != nil {
		return err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "user_batch.InsertMassiveBatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("batch.size", len(users)),
			attribute.Int("batch.chunk_size", s.config.ChunkSize),
			attribute.String("batch.flush_boundary", string(s.config.FlushBoundary)),
		),
	)
	defer func() { endSpan(span, err) }()

	start := time.Now()

	session, err := s.sessions.OpenBatchSession(ctx)
	if err != nil {
		return fmt.Errorf("%w: open batch session: %w", ErrResource, err)
	}
	defer func() {
		if closeErr := session.Close(ctx); closeErr != nil {
			s.logger.Error("failed to close batch session", "error", closeErr)
		}
	}()

	var written int64
	flushes := 0
	flush := func() error {
		n, err := s.flush(ctx, session)
		if err != nil {
			return err
		}
		written += n
		flushes++
		return nil
	}

	for i, user := range users {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("massive batch aborted after %d of %d users: %w", i, len(users), err)
		}

		session.Queue(user)

		if s.shouldFlush(i) {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if s.config.FlushBoundary == FlushLegacy || session.Pending() > 0 {
		if err := flush(); err != nil {
			return err
		}
	}

	if err := session.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit massive batch: %w", ErrDataAccess, err)
	}

	span.SetAttributes(attribute.Int("batch.flushes", flushes))
	s.recordInserted(ctx, StrategyMassive, written)
	s.logger.Info("massive batch committed",
		"users", len(users),
		"rows", written,
		"flushes", flushes,
		"duration", time.Since(start),
	)
	return nil
}

// Insert picks the medium strategy for inputs up to MediumBatchMax users and
// the massive strategy above it.
func (s *Service) Insert(ctx context.Context, users []*entity.User) error {
	if len(users) <= s.config.MediumBatchMax {
		return s.InsertMediumBatch(ctx, users)
	}
	return s.InsertMassiveBatch(ctx, users)
}

// InsertOne persists a single user in its own transaction and assigns its id.
func (s *Service) InsertOne(ctx context.Context, user *entity.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	started := false
	err := s.txManager.WithTransaction(ctx, func(tx pgx.Tx) error {
		started = true
		if err := s.gateway.InsertOne(ctx, tx, user); err != nil {
			return fmt.Errorf("%w: insert user: %w", ErrDataAccess, err)
		}
		return nil
	})
	if err != nil {
		return classifyTxError(err, started, "insert one")
	}

	s.recordInserted(ctx, "single", 1)
	return nil
}

// Count returns the number of stored users.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.gateway.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDataAccess, err)
	}
	return n, nil
}

// shouldFlush reports whether a flush follows queuing the user at 0-based index i.
func (s *Service) shouldFlush(i int) bool {
	chunk := s.config.ChunkSize
	if s.config.FlushBoundary == FlushLegacy {
		return i%chunk == 0 && i > 0
	}
	return (i+1)%chunk == 0
}

func (s *Service) flush(ctx context.Context, session outbound.BatchSession) (int64, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("waiting for flush slot: %w", err)
		}
	}

	pending := session.Pending()
	n, err := session.Flush(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: flush of %d inserts: %w", ErrDataAccess, pending, err)
	}

	if s.config.Metrics != nil {
		s.config.Metrics.RecordFlush(ctx, n)
	}
	s.logger.Debug("flushed batch", "rows", n)
	return n, nil
}

func (s *Service) recordInserted(ctx context.Context, strategy string, rows int64) {
	if s.config.Metrics != nil {
		s.config.Metrics.RecordUsersInserted(ctx, strategy, rows)
	}
}

// validateAll rejects the whole input if any record is malformed.
func validateAll(users []*entity.User) error {
	for i, user := range users {
		if err := user.Validate(); err != nil {
			return fmt.Errorf("user at index %d: %w", i, err)
		}
	}
	return nil
}

// classifyTxError tags errors escaping TxManager. If fn never ran, the
// transaction could not be started.
func classifyTxError(err error, started bool, op string) error {
	switch {
	case errors.Is(err, ErrDataAccess), errors.Is(err, ErrResource):
		return err
	case !started:
		return fmt.Errorf("%w: %s: %w", ErrResource, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrDataAccess, op, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
