// Package scheduler runs heterogeneous per-block task lists with bounded
// concurrency: a buffered channel used as a counting semaphore around a
// sync.WaitGroup, generalized into a reusable RunWithConcurrency.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one independently-timed unit of work. A task's failure is
// recorded and surfaced in the Summary; it never cancels sibling tasks.
type Task func(ctx context.Context) error

// Span is one task's timing and outcome, named "<label>#<idx>".
type Span struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Summary is the result of one RunWithConcurrency call.
type Summary struct {
	Label    string
	Spans    []Span
	Failures int
}

// RunWithConcurrency executes tasks with at most limit running at once,
// returning only when every task has finished. Tasks are independent: one
// failure is recorded, not propagated, and does not cancel siblings. No
// priority inversion is introduced by this function itself — callers get
// that guarantee by calling RunWithConcurrency for phase 1 and waiting for
// it to return before calling it again for phase 2.
func RunWithConcurrency(ctx context.Context, tasks []Task, limit int, label string, log *zap.Logger) Summary {
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	spans := make([]Span, len(tasks))

	for i, task := range tasks {
		i, task := i, task
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			err := task(ctx)
			span := Span{
				Name:     fmt.Sprintf("%s#%d", label, i),
				Duration: time.Since(start),
				Err:      err,
			}
			mu.Lock()
			spans[i] = span
			mu.Unlock()

			if err != nil && log != nil {
				log.Warn("task failed", zap.String("span", span.Name), zap.Error(err))
			}
		}()
	}
	wg.Wait()

	failures := 0
	for _, s := range spans {
		if s.Err != nil {
			failures++
		}
	}
	return Summary{Label: label, Spans: spans, Failures: failures}
}
