package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/stl/user-batch/internal/domain/entity"
	"github.com/archon-research/stl/user-batch/internal/ports/outbound"
)

// Compile-time checks that UserGateway implements the outbound ports.
var (
	_ outbound.UserGateway         = (*UserGateway)(nil)
	_ outbound.BatchSessionFactory = (*UserGateway)(nil)
)

// ErrBatchTooLarge is returned by InsertBatch when the batch would exceed the
// bind parameter limit of a single statement.
var ErrBatchTooLarge = errors.New("batch exceeds single statement parameter limit")

// UserGateway is a PostgreSQL implementation of the outbound.UserGateway port.
type UserGateway struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewUserGateway creates a new PostgreSQL user gateway.
// Returns an error if the database pool is nil.
//
// Note: This function does not verify that the database connection is alive.
// Use OpenPool, which pings, or call pool.Ping() if connection validation is needed.
func NewUserGateway(pool *pgxpool.Pool, logger *slog.Logger) (*UserGateway, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserGateway{
		pool:   pool,
		logger: logger.With("component", "user-gateway"),
	}, nil
}

// InsertOne inserts a single user within tx and assigns the generated id.
func (g *UserGateway) InsertOne(ctx context.Context, tx pgx.Tx, user *entity.User) error {
	if tx == nil {
		return fmt.Errorf("transaction cannot be nil")
	}

	var id int64
	err := tx.QueryRow(ctx, insertUserSQL+` RETURNING id`,
		user.Username(), user.Email(), user.CreatedAt()).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert user %q: %w", user.Username(), err)
	}

	if err := user.AssignID(id); err != nil {
		return fmt.Errorf("failed to assign id to user %q: %w", user.Username(), err)
	}
	return nil
}

// InsertBatch inserts all users with one multi-row INSERT within tx.
// The whole slice goes out as a single statement; it is never split.
func (g *UserGateway) InsertBatch(ctx context.Context, tx pgx.Tx, users []*entity.User) (int64, error) {
	if len(users) == 0 {
		return 0, nil
	}
	if len(users) > MaxUsersPerStatement {
		return 0, fmt.Errorf("%w: %d users, max %d", ErrBatchTooLarge, len(users), MaxUsersPerStatement)
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction cannot be nil")
	}

	query, args := buildMultiRowInsert(users)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user batch of %d: %w", len(users), err)
	}
	return tag.RowsAffected(), nil
}

// buildMultiRowInsert renders INSERT INTO users ... VALUES ($1, $2, $3), ($4, $5, $6), ...
func buildMultiRowInsert(users []*entity.User) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO users (username, email, created_at) VALUES `)

	args := make([]any, 0, len(users)*userInsertColumns)
	for i, user := range users {
		if i > 0 {
			sb.WriteString(", ")
		}
		baseIdx := i * userInsertColumns
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", baseIdx+1, baseIdx+2, baseIdx+3)

		args = append(args, user.Username(), user.Email(), user.CreatedAt())
	}
	return sb.String(), args
}

// Count returns the number of rows in the users table.
func (g *UserGateway) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := g.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// OpenBatchSession acquires a dedicated connection and begins a transaction on it.
// The returned session must be closed by the caller.
func (g *UserGateway) OpenBatchSession(ctx context.Context) (outbound.BatchSession, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &BatchSession{
		conn:   conn,
		tx:     tx,
		batch:  &pgx.Batch{},
		logger: g.logger,
	}, nil
}
