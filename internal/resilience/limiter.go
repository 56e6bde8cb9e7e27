package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/paddock/internal/port/database"
)

// LimitedExecutor bounds concurrent executions with a weighted semaphore.
// Callers waiting for a slot give up when their context ends.
type LimitedExecutor struct {
	inner database.Executor
	sem   *semaphore.Weighted
}

// Limit wraps inner so at most limit executions run at once.
func Limit(inner database.Executor, limit int) *LimitedExecutor {
	return &LimitedExecutor{inner: inner, sem: semaphore.NewWeighted(int64(max(limit, 1)))}
}

func (l *LimitedExecutor) Execute(ctx context.Context, sql string, params []any) ([]database.Row, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.inner.Execute(ctx, sql, params)
}
