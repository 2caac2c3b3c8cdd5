package batchqueue

import (
	"sync"
	"testing"
	"time"
)

func TestQueueFlushesOnMaxItems(t *testing.T) {
	var mu sync.Mutex
	var flushed [][]int

	q := New(3, time.Hour, func(items []int) error {
		mu.Lock()
		cp := append([]int(nil), items...)
		flushed = append(flushed, cp)
		mu.Unlock()
		return nil
	}, nil)
	defer q.Close()

	q.Add(1)
	q.Add(2)
	q.Add(3)

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(flushed)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected a size-triggered flush")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 1 || len(flushed[0]) != 3 {
		t.Fatalf("expected one batch of 3, got %+v", flushed)
	}
}

func TestQueueFlushesOnClose(t *testing.T) {
	var mu sync.Mutex
	var flushed []int

	q := New(100, time.Hour, func(items []int) error {
		mu.Lock()
		flushed = append(flushed, items...)
		mu.Unlock()
		return nil
	}, nil)

	q.Add(42)
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 1 || flushed[0] != 42 {
		t.Fatalf("expected close to flush remainder, got %+v", flushed)
	}
}

func TestQueueSurfacesFlushError(t *testing.T) {
	q := New(1, time.Hour, func(items []int) error {
		return errBoom
	}, nil)
	defer q.Close()

	q.Add(1)

	select {
	case err := <-q.Errors():
		if err != errBoom {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected flush error on Errors()")
	}
}

var errBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
