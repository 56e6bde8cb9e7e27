package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/port/database"
)

type funcExecutor func(ctx context.Context) ([]database.Row, error)

func (f funcExecutor) Execute(ctx context.Context, _ string, _ []any) ([]database.Row, error) {
	return f(ctx)
}

func TestLimitBoundsConcurrency(t *testing.T) {
	const limit = 3
	const workers = 10

	var running, maxSeen atomic.Int32
	exec := Limit(funcExecutor(func(context.Context) ([]database.Row, error) {
		cur := running.Add(1)
		for {
			old := maxSeen.Load()
			if cur <= old || maxSeen.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}), limit)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := exec.Execute(context.Background(), "", nil); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if m := maxSeen.Load(); m > limit {
		t.Errorf("max concurrent = %d, want <= %d", m, limit)
	}
}

func TestLimitHonoursContext(t *testing.T) {
	occupied := make(chan struct{})
	release := make(chan struct{})
	exec := Limit(funcExecutor(func(context.Context) ([]database.Row, error) {
		close(occupied)
		<-release
		return nil, nil
	}), 1)

	go func() { _, _ = exec.Execute(context.Background(), "", nil) }()
	<-occupied

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exec.Execute(ctx, "", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	close(release)
}
