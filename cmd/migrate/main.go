package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/archon-research/stl/user-batch/db/migrator"
	"github.com/archon-research/stl/user-batch/internal/adapters/outbound/postgres"
	"github.com/archon-research/stl/user-batch/internal/pkg/env"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	if err := run(ctx, os.Args[1:], logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dir := fs.String("dir", "./db/migrations", "Migrations directory")
	list := fs.Bool("list", false, "List applied migrations after applying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	connStr := env.Get("DATABASE_URL", "")
	if connStr == "" {
		return fmt.Errorf("required environment variable not set: DATABASE_URL")
	}

	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(connStr))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	m := migrator.New(pool, *dir, logger)
	if err := m.ApplyAll(ctx); err != nil {
		return err
	}

	if *list {
		applied, err := m.ListApplied(ctx)
		if err != nil {
			return err
		}
		for _, name := range applied {
			logger.Info("applied", "migration", name)
		}
	}

	logger.Info("all migrations up to date")
	return nil
}
