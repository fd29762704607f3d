package user_batch

import (
	"context"

	"github.com/archon-research/stl/user-batch/internal/domain/entity"
	"github.com/archon-research/stl/user-batch/internal/ports/inbound"
	"github.com/archon-research/stl/user-batch/internal/services/shared"
)

// Compile-time check that Instrumented implements inbound.UserBatchService
var _ inbound.UserBatchService = (*Instrumented)(nil)

// Instrumented routes every UserBatchService call through an interceptor so
// each one is timed and logged. Results and errors pass through untouched.
type Instrumented struct {
	next        inbound.UserBatchService
	interceptor *shared.Interceptor
}

// NewInstrumented wraps next with interceptor.
func NewInstrumented(next inbound.UserBatchService, interceptor *shared.Interceptor) *Instrumented {
	return &Instrumented{next: next, interceptor: interceptor}
}

func (s *Instrumented) InsertMediumBatch(ctx context.Context, users []*entity.User) error {
	return s.interceptor.Observe(ctx, "UserBatchService.InsertMediumBatch", func(ctx context.Context) error {
		return s.next.InsertMediumBatch(ctx, users)
	})
}

func (s *Instrumented) InsertMassiveBatch(ctx context.Context, users []*entity.User) error {
	return s.interceptor.Observe(ctx, "UserBatchService.InsertMassiveBatch", func(ctx context.Context) error {
		return s.next.InsertMassiveBatch(ctx, users)
	})
}

func (s *Instrumented) Insert(ctx context.Context, users []*entity.User) error {
	return s.interceptor.Observe(ctx, "UserBatchService.Insert", func(ctx context.Context) error {
		return s.next.Insert(ctx, users)
	})
}

func (s *Instrumented) InsertOne(ctx context.Context, user *entity.User) error {
	return s.interceptor.Observe(ctx, "UserBatchService.InsertOne", func(ctx context.Context) error {
		return s.next.InsertOne(ctx, user)
	})
}

func (s *Instrumented) Count(ctx context.Context) (int64, error) {
	return shared.Call(ctx, s.interceptor, "UserBatchService.Count", s.next.Count)
}
