package outbound

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/archon-research/stl/user-batch/internal/domain/entity"
)

// UserGateway defines the interface for user record persistence.
// It is the boundary between the batch insert service and the database.
type UserGateway interface {
	// InsertOne inserts a single user within tx and assigns the generated
	// identifier to it.
	InsertOne(ctx context.Context, tx pgx.Tx, user *entity.User) error

	// InsertBatch inserts all users with a single multi-row statement within tx.
	// Returns the number of rows inserted. Identifiers are not assigned.
	InsertBatch(ctx context.Context, tx pgx.Tx, users []*entity.User) (int64, error)

	// Count returns the number of stored user records.
	Count(ctx context.Context) (int64, error)
}

// BatchSessionFactory opens dedicated batched-execution sessions.
type BatchSessionFactory interface {
	// OpenBatchSession acquires a connection and begins a transaction that is
	// independent from any ambient transaction. The caller must Close it.
	OpenBatchSession(ctx context.Context) (BatchSession, error)
}

// BatchSession queues single-row inserts and sends them to the store in flushes.
// Nothing becomes visible to other sessions until Commit.
//
// A BatchSession is not safe for concurrent use.
type BatchSession interface {
	// Queue adds an insert for user to the pending batch. No I/O is performed.
	Queue(user *entity.User)

	// Pending returns the number of queued inserts not yet flushed.
	Pending() int

	// Flush sends all pending inserts to the store and clears the queue.
	// The transaction stays open. Returns the number of rows written.
	Flush(ctx context.Context) (int64, error)

	// Commit finalizes everything flushed so far. It fails if inserts are
	// still pending.
	Commit(ctx context.Context) error

	// Close rolls back the transaction if it was not committed and releases
	// the underlying connection. It is safe to call more than once.
	Close(ctx context.Context) error
}
