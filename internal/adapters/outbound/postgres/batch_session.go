package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/stl/user-batch/internal/domain/entity"
	"github.com/archon-research/stl/user-batch/internal/ports/outbound"
)

// Compile-time check that BatchSession implements outbound.BatchSession
var _ outbound.BatchSession = (*BatchSession)(nil)

// BatchSession queues single-row inserts in a pgx.Batch and sends them with
// SendBatch on Flush. All flushes share one transaction on one connection.
type BatchSession struct {
	conn   *pgxpool.Conn
	tx     pgx.Tx
	batch  *pgx.Batch
	logger *slog.Logger

	committed bool
	closed    bool
}

// Queue adds an insert for user to the pending batch.
func (s *BatchSession) Queue(user *entity.User) {
	s.batch.Queue(insertUserSQL, user.Username(), user.Email(), user.CreatedAt())
}

// Pending returns the number of queued inserts.
func (s *BatchSession) Pending() int {
	return s.batch.Len()
}

// Flush sends the queued inserts in one round trip and clears the queue.
// Returns the number of rows inserted.
func (s *BatchSession) Flush(ctx context.Context) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("batch session is closed")
	}
	queued := s.batch.Len()
	if queued == 0 {
		return 0, nil
	}

	br := s.tx.SendBatch(ctx, s.batch)
	s.batch = &pgx.Batch{}

	var rows int64
	for i := 0; i < queued; i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return rows, fmt.Errorf("failed to flush user insert %d of %d: %w", i+1, queued, err)
		}
		rows += tag.RowsAffected()
	}

	if err := br.Close(); err != nil {
		return rows, fmt.Errorf("failed to close batch results: %w", err)
	}
	return rows, nil
}

// Commit commits the session transaction.
func (s *BatchSession) Commit(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("batch session is closed")
	}
	if n := s.batch.Len(); n > 0 {
		return fmt.Errorf("cannot commit with %d unflushed inserts", n)
	}
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch session: %w", err)
	}
	s.committed = true
	return nil
}

// Close rolls back an uncommitted transaction and releases the connection.
func (s *BatchSession) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.conn.Release()

	if !s.committed {
		rollback(context.WithoutCancel(ctx), s.tx, s.logger)
	}
	return nil
}
