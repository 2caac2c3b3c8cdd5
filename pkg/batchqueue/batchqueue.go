// Package batchqueue implements a generic bounded coalescer: items enqueue
// continuously and flush either once maxItems is reached or maxWait elapses,
// whichever comes first.
package batchqueue

import (
	"sync"
	"time"

	"github.com/degenter/indexer/pkg/util"
)

// FlushFunc receives one coalesced batch. A returned error is surfaced to
// the caller on the next Errors() read; it never stops the queue.
type FlushFunc[T any] func(items []T) error

// Queue coalesces items of type T under a mutex and flushes them either on
// size or on a timer, never both racing the same batch.
type Queue[T any] struct {
	mu        sync.Mutex
	buf       []T
	maxItems  int
	maxWait   time.Duration
	flush     FlushFunc[T]
	clock     util.Clock
	errCh     chan error
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New starts a queue's background ticker goroutine. Call Close to stop it
// and flush any remainder.
func New[T any](maxItems int, maxWait time.Duration, flush FlushFunc[T], clock util.Clock) *Queue[T] {
	if clock == nil {
		clock = util.RealClock{}
	}
	q := &Queue[T]{
		maxItems: maxItems,
		maxWait:  maxWait,
		flush:    flush,
		clock:    clock,
		errCh:    make(chan error, 16),
		stopCh:   make(chan struct{}),
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

// Add enqueues one item, triggering an immediate flush if maxItems is
// reached. Safe for concurrent use by multiple producers.
func (q *Queue[T]) Add(item T) {
	q.mu.Lock()
	q.buf = append(q.buf, item)
	full := len(q.buf) >= q.maxItems
	q.mu.Unlock()

	if full {
		q.flushNow()
	}
}

func (q *Queue[T]) loop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.clock.After(q.maxWait):
			q.flushNow()
		case <-q.stopCh:
			q.flushNow()
			return
		}
	}
}

func (q *Queue[T]) flushNow() {
	q.mu.Lock()
	if len(q.buf) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.buf
	q.buf = nil
	q.mu.Unlock()

	if err := q.flush(batch); err != nil {
		select {
		case q.errCh <- err:
		default:
		}
	}
}

// Errors returns the channel flush errors are posted to. The channel is
// buffered and lossy under sustained failure: callers that need every
// error should drain promptly.
func (q *Queue[T]) Errors() <-chan error {
	return q.errCh
}

// Close stops the background ticker and flushes any remaining items.
func (q *Queue[T]) Close() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}
