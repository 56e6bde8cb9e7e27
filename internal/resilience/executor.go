package resilience

import (
	"context"

	"github.com/Strob0t/paddock/internal/port/database"
)

// GuardedExecutor runs queries through a Breaker.
type GuardedExecutor struct {
	inner   database.Executor
	breaker *Breaker
}

// Guard wraps inner with b.
func Guard(inner database.Executor, b *Breaker) *GuardedExecutor {
	return &GuardedExecutor{inner: inner, breaker: b}
}

func (g *GuardedExecutor) Execute(ctx context.Context, sql string, params []any) ([]database.Row, error) {
	var rows []database.Row
	err := g.breaker.Execute(func() error {
		var err error
		rows, err = g.inner.Execute(ctx, sql, params)
		return err
	})
	return rows, err
}

// BreakerState reports the circuit state for health checks.
func (g *GuardedExecutor) BreakerState() string { return g.breaker.State() }
