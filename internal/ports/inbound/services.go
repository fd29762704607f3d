// Package inbound contains the primary/inbound ports.
// These interfaces define the use cases that the application exposes.
package inbound

import (
	"context"

	"github.com/archon-research/stl/user-batch/internal/domain/entity"
)

// UserBatchService defines the batch insertion use cases.
// Inbound adapters (CLI, tests) call these methods, usually through the
// instrumented decorator so every call is performance-logged.
type UserBatchService interface {
	// InsertMediumBatch persists users with one multi-row statement in one
	// transaction. Intended for batches of up to about 1000 records.
	InsertMediumBatch(ctx context.Context, users []*entity.User) error

	// InsertMassiveBatch persists users through a dedicated batched session,
	// flushing every chunk and committing once. Intended for 10,000+ records.
	InsertMassiveBatch(ctx context.Context, users []*entity.User) error

	// Insert selects a strategy based on the number of users.
	Insert(ctx context.Context, users []*entity.User) error

	// InsertOne persists a single user and assigns its identifier.
	InsertOne(ctx context.Context, user *entity.User) error

	// Count returns the number of stored users.
	Count(ctx context.Context) (int64, error)
}
