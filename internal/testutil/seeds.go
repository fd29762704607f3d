package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/stl/user-batch/internal/domain/entity"
)

// MakeUsers builds n valid users named <prefix><i> with deterministic creation times.
func MakeUsers(t testing.TB, prefix string, n int) []*entity.User {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	users := make([]*entity.User, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		u, err := entity.NewUser(name, name+"@example.com", base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("failed to build test user %s: %v", name, err)
		}
		users = append(users, u)
	}
	return users
}

// CountUsers returns the number of rows in the users table.
func CountUsers(t testing.TB, ctx context.Context, pool *pgxpool.Pool) int64 {
	t.Helper()
	var count int64
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	return count
}
