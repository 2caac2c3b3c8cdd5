package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunWithConcurrencyRunsAllTasks(t *testing.T) {
	var count int64
	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		}
	}

	sum := RunWithConcurrency(context.Background(), tasks, 4, "test", nil)
	if count != 20 {
		t.Fatalf("expected 20 tasks to run, got %d", count)
	}
	if sum.Failures != 0 {
		t.Fatalf("expected no failures, got %d", sum.Failures)
	}
	if len(sum.Spans) != 20 {
		t.Fatalf("expected 20 spans, got %d", len(sum.Spans))
	}
}

func TestRunWithConcurrencyIsolatesFailures(t *testing.T) {
	tasks := []Task{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return errors.New("boom") },
		func(ctx context.Context) error { return nil },
	}
	sum := RunWithConcurrency(context.Background(), tasks, 2, "mixed", nil)
	if sum.Failures != 1 {
		t.Fatalf("expected exactly 1 failure, got %d", sum.Failures)
	}
	succeeded := 0
	for _, s := range sum.Spans {
		if s.Err == nil {
			succeeded++
		}
	}
	if succeeded != 2 {
		t.Fatalf("expected 2 successful spans despite the sibling failure, got %d", succeeded)
	}
}

func TestRunWithConcurrencyRespectsLimit(t *testing.T) {
	var inFlight, maxInFlight int64
	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				m := atomic.LoadInt64(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return nil
		}
	}
	RunWithConcurrency(context.Background(), tasks, 3, "limited", nil)
	if maxInFlight > 3 {
		t.Fatalf("expected at most 3 concurrent tasks, observed %d", maxInFlight)
	}
}
