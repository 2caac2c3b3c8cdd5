package ohlcv

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	calls []call
}

type call struct {
	poolID      int64
	bucketStart time.Time
	price       decimal.Decimal
	volZig      decimal.Decimal
	tradeInc    int64
}

func (f *fakeStore) UpsertOHLCV1m(ctx context.Context, poolID int64, bucketStart time.Time, price, volZig decimal.Decimal, tradeInc int64) error {
	f.calls = append(f.calls, call{poolID, bucketStart, price, volZig, tradeInc})
	return nil
}

func TestObserveFloorsToMinute(t *testing.T) {
	store := &fakeStore{}
	agg := New(store)

	ts := time.Date(2026, 7, 30, 12, 34, 56, 0, time.UTC)
	if err := agg.Observe(context.Background(), 1, ts, decimal.NewFromInt(2), decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}

	want := time.Date(2026, 7, 30, 12, 34, 0, 0, time.UTC)
	if len(store.calls) != 1 || !store.calls[0].bucketStart.Equal(want) {
		t.Fatalf("bucketStart = %v, want %v", store.calls, want)
	}
	if store.calls[0].tradeInc != 1 {
		t.Fatalf("expected trade_inc 1, got %d", store.calls[0].tradeInc)
	}
}

func TestSeedWritesZeroVolume(t *testing.T) {
	store := &fakeStore{}
	agg := New(store)

	ts := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	if err := agg.Seed(context.Background(), 7, ts, decimal.NewFromInt(3)); err != nil {
		t.Fatal(err)
	}
	if len(store.calls) != 1 || !store.calls[0].volZig.IsZero() || store.calls[0].tradeInc != 0 {
		t.Fatalf("expected zero-volume seed row, got %+v", store.calls)
	}
}
