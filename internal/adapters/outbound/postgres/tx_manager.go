package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/stl/user-batch/internal/ports/outbound"
)

// Compile-time check that TxManager implements outbound.TxManager
var _ outbound.TxManager = (*TxManager)(nil)

// TxManager provides transaction lifecycle management for services.
// Services use this to demarcate the transactional boundary of a use case.
//
// Usage:
//
//	txm, _ := postgres.NewTxManager(pool, logger)
//	err := txm.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    _, err := gateway.InsertBatch(ctx, tx, users)
//	    return err // non-nil triggers rollback
//	})
type TxManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTxManager creates a new transaction manager.
// Returns an error if the database pool is nil.
func NewTxManager(pool *pgxpool.Pool, logger *slog.Logger) (*TxManager, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TxManager{
		pool:   pool,
		logger: logger,
	}, nil
}

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsoLevel sets the transaction isolation level.
	// Default: uses database default (typically ReadCommitted).
	IsoLevel pgx.TxIsoLevel
	// AccessMode marks the transaction as read-only or read-write.
	AccessMode pgx.TxAccessMode
}

// WithTransaction executes fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn succeeds, the transaction is committed.
//
// The transaction is automatically rolled back if:
//   - fn returns an error
//   - fn panics (panic is re-raised after rollback)
//   - ctx is cancelled before commit
//   - commit fails
func (m *TxManager) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return m.WithTransactionOptions(ctx, nil, fn)
}

// WithTransactionOptions executes fn within a database transaction with custom options.
func (m *TxManager) WithTransactionOptions(ctx context.Context, opts *TxOptions, fn func(tx pgx.Tx) error) error {
	var txOpts pgx.TxOptions
	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
	}

	tx, err := m.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Handle panic by rolling back and re-raising
	defer func() {
		if p := recover(); p != nil {
			rollback(context.WithoutCancel(ctx), tx, m.logger)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		rollback(context.WithoutCancel(ctx), tx, m.logger)
		return err
	}

	if err := ctx.Err(); err != nil {
		rollback(context.WithoutCancel(ctx), tx, m.logger)
		return fmt.Errorf("transaction aborted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
