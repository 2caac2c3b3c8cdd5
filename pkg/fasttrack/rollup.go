package fasttrack

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/model"
)

// RollupStore is the subset of *db.DB the matrix rollup needs.
type RollupStore interface {
	PoolVolumeSince(ctx context.Context, poolID int64, sinceMinutesAgo int) (decimal.Decimal, int64, error)
	TokenVolumeSince(ctx context.Context, tokenID int64, sinceMinutesAgo int) (decimal.Decimal, int64, error)
	UpsertPoolMatrix(ctx context.Context, poolID int64, bucket model.Bucket, volumeZig decimal.Decimal, tradeCount int64, priceDelta decimal.Decimal) error
	UpsertTokenMatrix(ctx context.Context, tokenID int64, bucket model.Bucket, volumeZig decimal.Decimal, tradeCount int64, priceDelta decimal.Decimal) error
}

var bucketMinutes = map[model.Bucket]int{
	model.Bucket30m: 30,
	model.Bucket1h:  60,
	model.Bucket4h:  240,
	model.Bucket24h: 1440,
}

// Rollup computes pool/token matrix rows across all four bucket windows.
// Price delta is left at zero: computing it needs a historical price
// sample at the bucket's start from the price-tick series, which this
// rollup does not read.
type Rollup struct {
	store RollupStore
}

func NewRollup(store RollupStore) *Rollup {
	return &Rollup{store: store}
}

func (r *Rollup) RollupPool(ctx context.Context, poolID int64) error {
	for _, bucket := range model.AllBuckets {
		vol, count, err := r.store.PoolVolumeSince(ctx, poolID, bucketMinutes[bucket])
		if err != nil {
			return fmt.Errorf("pool volume pool=%d bucket=%s: %w", poolID, bucket, err)
		}
		if err := r.store.UpsertPoolMatrix(ctx, poolID, bucket, vol, count, decimal.Zero); err != nil {
			return fmt.Errorf("upsert pool matrix pool=%d bucket=%s: %w", poolID, bucket, err)
		}
	}
	return nil
}

func (r *Rollup) RollupToken(ctx context.Context, tokenID int64) error {
	for _, bucket := range model.AllBuckets {
		vol, count, err := r.store.TokenVolumeSince(ctx, tokenID, bucketMinutes[bucket])
		if err != nil {
			return fmt.Errorf("token volume token=%d bucket=%s: %w", tokenID, bucket, err)
		}
		if err := r.store.UpsertTokenMatrix(ctx, tokenID, bucket, vol, count, decimal.Zero); err != nil {
			return fmt.Errorf("upsert token matrix token=%d bucket=%s: %w", tokenID, bucket, err)
		}
	}
	return nil
}
