// Package main generates users and stores them with one of the batch insert
// strategies, reporting elapsed time and the resulting row count.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/archon-research/stl/user-batch/db/migrator"
	"github.com/archon-research/stl/user-batch/internal/adapters/outbound/postgres"
	"github.com/archon-research/stl/user-batch/internal/adapters/outbound/telemetry"
	"github.com/archon-research/stl/user-batch/internal/domain/entity"
	"github.com/archon-research/stl/user-batch/internal/pkg/env"
	"github.com/archon-research/stl/user-batch/internal/ports/inbound"
	"github.com/archon-research/stl/user-batch/internal/services/shared"
	"github.com/archon-research/stl/user-batch/internal/services/user_batch"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	strategy      string
	count         int
	chunkSize     int
	dbURL         string
	migrate       bool
	migrationsDir string
	flushBoundary user_batch.FlushBoundary
	flushRate     float64
	slowThreshold time.Duration
	otlpEndpoint  string
	traceStdout   bool
}

const strategyAuto = "auto"

func parseConfig(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet("userbatch", flag.ContinueOnError)
	strategy := fs.String("strategy", strategyAuto, "Insert strategy: auto, medium or massive")
	count := fs.Int("count", 1000, "Number of users to generate")
	chunkSize := fs.Int("chunk-size", 1000, "Inserts per flush for the massive strategy")
	dbURL := fs.String("db", "", "PostgreSQL connection URL")
	migrate := fs.Bool("migrate", false, "Apply migrations before inserting")
	migrationsDir := fs.String("migrations", "./db/migrations", "Migrations directory")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	var err error
	cfg := cliConfig{
		strategy:      *strategy,
		count:         *count,
		chunkSize:     *chunkSize,
		dbURL:         *dbURL,
		migrate:       *migrate,
		migrationsDir: *migrationsDir,
		flushBoundary: user_batch.FlushBoundary(env.Get("FLUSH_BOUNDARY", string(user_batch.FlushAligned))),
		otlpEndpoint:  env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", env.Get("JAEGER_ENDPOINT", "")),
	}

	switch cfg.strategy {
	case strategyAuto, user_batch.StrategyMedium, user_batch.StrategyMassive:
	default:
		return cliConfig{}, fmt.Errorf("unknown strategy %q (must be auto, medium or massive)", cfg.strategy)
	}
	if cfg.count < 0 {
		return cliConfig{}, fmt.Errorf("count must not be negative, got %d", cfg.count)
	}
	if cfg.chunkSize <= 0 {
		return cliConfig{}, fmt.Errorf("chunk size must be positive, got %d", cfg.chunkSize)
	}
	if cfg.flushBoundary != user_batch.FlushAligned && cfg.flushBoundary != user_batch.FlushLegacy {
		return cliConfig{}, fmt.Errorf("invalid FLUSH_BOUNDARY %q (must be aligned or legacy)", cfg.flushBoundary)
	}

	if cfg.dbURL == "" {
		cfg.dbURL = env.Get("DATABASE_URL", "")
	}
	if cfg.dbURL == "" {
		return cliConfig{}, fmt.Errorf("database URL not provided (use -db flag or DATABASE_URL env var)")
	}

	cfg.flushRate, err = env.NonNegativeFloat("FLUSH_RATE", 0)
	if err != nil {
		return cliConfig{}, err
	}
	cfg.slowThreshold, err = env.Duration("SLOW_CALL_THRESHOLD", shared.InterceptorConfigDefaults().SlowThreshold)
	if err != nil {
		return cliConfig{}, err
	}
	cfg.traceStdout, err = env.Bool("TRACE_STDOUT", false)
	if err != nil {
		return cliConfig{}, err
	}

	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	var traceOut io.Writer = io.Discard
	if cfg.traceStdout {
		traceOut = os.Stdout
	}
	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "user-batch",
		Environment:    env.Get("ENVIRONMENT", "development"),
		JaegerEndpoint: cfg.otlpEndpoint,
		StdoutWriter:   traceOut,
	})
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer shutdownTelemetry(logger, "tracer", shutdownTracer)

	shutdownMeter, err := telemetry.InitMetrics(ctx, telemetry.MetricConfig{
		ServiceName:  "user-batch",
		Environment:  env.Get("ENVIRONMENT", "development"),
		OTLPEndpoint: cfg.otlpEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer shutdownTelemetry(logger, "meter", shutdownMeter)

	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(cfg.dbURL))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	logger.Info("PostgreSQL connected")

	if cfg.migrate {
		if err := migrator.New(pool, cfg.migrationsDir, logger).ApplyAll(ctx); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}

	txManager, err := postgres.NewTxManager(pool, logger)
	if err != nil {
		return fmt.Errorf("creating tx manager: %w", err)
	}
	gateway, err := postgres.NewUserGateway(pool, logger)
	if err != nil {
		return fmt.Errorf("creating user gateway: %w", err)
	}
	metrics, err := shared.NewAppTelemetry()
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	service, err := user_batch.NewService(user_batch.ServiceConfig{
		ChunkSize:     cfg.chunkSize,
		FlushBoundary: cfg.flushBoundary,
		FlushRate:     cfg.flushRate,
		Logger:        logger,
		Metrics:       metrics,
	}, txManager, gateway, gateway)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	instrumented := user_batch.NewInstrumented(service, shared.NewInterceptor(shared.InterceptorConfig{
		SlowThreshold: cfg.slowThreshold,
		Logger:        logger,
		Correlation:   telemetry.SpanCorrelation{},
		Metrics:       metrics,
	}))

	users, err := generateUsers(uuid.NewString()[:8], cfg.count, time.Now().UTC())
	if err != nil {
		return err
	}

	// Root span so every intercepted call logs the same correlation id.
	ctx, span := otel.Tracer("github.com/archon-research/stl/user-batch/cmd/userbatch").Start(ctx, "userbatch.run")
	defer span.End()

	start := time.Now()
	if err := insert(ctx, instrumented, cfg.strategy, users); err != nil {
		return fmt.Errorf("inserting %d users: %w", len(users), err)
	}
	elapsed := time.Since(start)

	total, err := instrumented.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}

	fmt.Fprintf(out, "inserted %d users with %s strategy in %s (%d users stored)\n",
		len(users), cfg.strategy, elapsed.Round(time.Millisecond), total)
	return nil
}

func insert(ctx context.Context, svc inbound.UserBatchService, strategy string, users []*entity.User) error {
	switch strategy {
	case user_batch.StrategyMedium:
		return svc.InsertMediumBatch(ctx, users)
	case user_batch.StrategyMassive:
		return svc.InsertMassiveBatch(ctx, users)
	default:
		return svc.Insert(ctx, users)
	}
}

// generateUsers builds n users named user-<run>-<i>. The run tag keeps
// repeated invocations from colliding on the unique username.
func generateUsers(run string, n int, createdAt time.Time) ([]*entity.User, error) {
	users := make([]*entity.User, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("user-%s-%d", run, i)
		u, err := entity.NewUser(name, name+"@example.com", createdAt)
		if err != nil {
			return nil, fmt.Errorf("generating user %d: %w", i, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func shutdownTelemetry(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", "provider", name, "error", err)
	}
}
