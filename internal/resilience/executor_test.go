package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/port/database"
)

type fakeExecutor struct {
	calls int
	err   error
	rows  []database.Row
}

func (f *fakeExecutor) Execute(context.Context, string, []any) ([]database.Row, error) {
	f.calls++
	return f.rows, f.err
}

func TestGuardedExecutor(t *testing.T) {
	inner := &fakeExecutor{rows: []database.Row{{"season": 2024}}}
	g := Guard(inner, NewBreaker(2, time.Minute))
	ctx := context.Background()

	rows, err := g.Execute(ctx, "SELECT 1", nil)
	if err != nil || len(rows) != 1 {
		t.Fatalf("Execute = %v, %v", rows, err)
	}

	inner.err = errors.New("connection refused")
	_, _ = g.Execute(ctx, "SELECT 1", nil)
	_, _ = g.Execute(ctx, "SELECT 1", nil)
	if _, err := g.Execute(ctx, "SELECT 1", nil); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
	if g.BreakerState() != "open" {
		t.Errorf("state = %s", g.BreakerState())
	}
}
