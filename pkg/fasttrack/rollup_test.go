package fasttrack

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/model"
)

type fakeRollupStore struct {
	poolCalls  []int
	tokenCalls []int
}

func (f *fakeRollupStore) PoolVolumeSince(ctx context.Context, poolID int64, sinceMinutesAgo int) (decimal.Decimal, int64, error) {
	f.poolCalls = append(f.poolCalls, sinceMinutesAgo)
	return decimal.NewFromInt(int64(sinceMinutesAgo)), 1, nil
}

func (f *fakeRollupStore) TokenVolumeSince(ctx context.Context, tokenID int64, sinceMinutesAgo int) (decimal.Decimal, int64, error) {
	f.tokenCalls = append(f.tokenCalls, sinceMinutesAgo)
	return decimal.NewFromInt(int64(sinceMinutesAgo)), 1, nil
}

func (f *fakeRollupStore) UpsertPoolMatrix(ctx context.Context, poolID int64, bucket model.Bucket, volumeZig decimal.Decimal, tradeCount int64, priceDelta decimal.Decimal) error {
	return nil
}

func (f *fakeRollupStore) UpsertTokenMatrix(ctx context.Context, tokenID int64, bucket model.Bucket, volumeZig decimal.Decimal, tradeCount int64, priceDelta decimal.Decimal) error {
	return nil
}

func TestRollupPoolCoversAllBuckets(t *testing.T) {
	store := &fakeRollupStore{}
	r := NewRollup(store)
	if err := r.RollupPool(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(store.poolCalls) != len(model.AllBuckets) {
		t.Fatalf("expected %d bucket queries, got %d", len(model.AllBuckets), len(store.poolCalls))
	}
	want := map[int]bool{30: true, 60: true, 240: true, 1440: true}
	for _, minutes := range store.poolCalls {
		if !want[minutes] {
			t.Errorf("unexpected bucket window %d minutes", minutes)
		}
	}
}

func TestRollupTokenCoversAllBuckets(t *testing.T) {
	store := &fakeRollupStore{}
	r := NewRollup(store)
	if err := r.RollupToken(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if len(store.tokenCalls) != len(model.AllBuckets) {
		t.Fatalf("expected %d bucket queries, got %d", len(model.AllBuckets), len(store.tokenCalls))
	}
}
