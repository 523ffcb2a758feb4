package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakePruner struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (f *fakePruner) DeleteOldRuns(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, olderThan)
	return 3, f.err
}

func (f *fakePruner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRetentionRunsOnStartAndTick(t *testing.T) {
	p := &fakePruner{}
	s := NewRetentionService(p, 48*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for p.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if p.count() < 2 {
		t.Fatalf("expected a startup run and at least one tick, got %d", p.count())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls[0] != 48*time.Hour {
		t.Errorf("pruned with max age %s; want 48h", p.calls[0])
	}
}

func TestRetentionDefaultsAndErrors(t *testing.T) {
	p := &fakePruner{err: errors.New("db down")}
	s := NewRetentionService(p, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if s.maxAge != 30*24*time.Hour {
		t.Errorf("default max age = %s", s.maxAge)
	}
	// A failing store is logged, not fatal.
	s.cleanup(context.Background())
	if p.count() != 1 {
		t.Errorf("expected one prune attempt, got %d", p.count())
	}
}
