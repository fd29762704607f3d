//go:build integration

package migrator_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/archon-research/stl/user-batch/db/migrator"
)

func getMigrationsPath() string {
	_, filename, _, _ := runtime.Caller(0)
	testDir := filepath.Dir(filename)
	return filepath.Join(testDir, "..", "migrations")
}

func setupPostgres(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		if err := testcontainers.TerminateContainer(postgresContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func TestMigrator_ApplyAll(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupPostgres(ctx, t)
	defer cleanup()

	m := migrator.New(pool, getMigrationsPath(), nil)
	if err := m.ApplyAll(ctx); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if count == 0 {
		t.Fatal("no migrations were applied")
	}

	migrations, err := m.ListApplied(ctx)
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	if len(migrations) != count {
		t.Errorf("ListApplied returned %d entries, want %d", len(migrations), count)
	}

	if err := m.ApplyAll(ctx); err != nil {
		t.Fatalf("second ApplyAll failed: %v", err)
	}

	var newCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM migrations").Scan(&newCount); err != nil {
		t.Fatalf("failed to count migrations after second run: %v", err)
	}
	if newCount != count {
		t.Fatalf("migration count changed: expected %d, got %d", count, newCount)
	}
}

func TestMigrator_VerifySchema(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupPostgres(ctx, t)
	defer cleanup()

	m := migrator.New(pool, getMigrationsPath(), nil)
	if err := m.ApplyAll(ctx); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	expectedColumns := []string{"id", "username", "email", "created_at"}
	for _, column := range expectedColumns {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.columns
				WHERE table_schema = 'public'
				AND table_name = 'users'
				AND column_name = $1
			)`, column).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check column %s: %v", column, err)
		}
		if !exists {
			t.Errorf("expected column users.%s does not exist", column)
		}
	}
}

func TestMigrator_ChecksumVerification(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupPostgres(ctx, t)
	defer cleanup()

	tempDir := t.TempDir()
	testMigrationFile := filepath.Join(tempDir, "001_test.sql")

	originalContent := `CREATE TABLE test_table (id SERIAL PRIMARY KEY, name TEXT);`
	if err := os.WriteFile(testMigrationFile, []byte(originalContent), 0644); err != nil {
		t.Fatalf("failed to write test migration: %v", err)
	}

	m := migrator.New(pool, tempDir, nil)
	if err := m.ApplyAll(ctx); err != nil {
		t.Fatalf("failed to apply initial migrations: %v", err)
	}

	modifiedContent := `CREATE TABLE test_table (id SERIAL PRIMARY KEY, name TEXT, email TEXT);`
	if err := os.WriteFile(testMigrationFile, []byte(modifiedContent), 0644); err != nil {
		t.Fatalf("failed to modify test migration: %v", err)
	}

	err := m.ApplyAll(ctx)
	if err == nil {
		t.Fatal("expected error for modified migration, got nil")
	}
	if !strings.Contains(err.Error(), "migration has been modified") {
		t.Fatalf("expected checksum error, got: %v", err)
	}
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupPostgres(ctx, t)
	defer cleanup()

	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "001_broken.sql"), []byte(`CREATE TABLE (;`), 0644); err != nil {
		t.Fatalf("failed to write migration: %v", err)
	}

	m := migrator.New(pool, tempDir, nil)
	if err := m.ApplyAll(ctx); err == nil {
		t.Fatal("expected error for broken migration")
	}

	applied, err := m.ListApplied(ctx)
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("broken migration was recorded: %v", applied)
	}
}
