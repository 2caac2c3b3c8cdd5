// Package ohlcv aggregates trade prices into one-minute OHLCV bars.
package ohlcv

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the subset of *db.DB the aggregator writes through.
type Store interface {
	UpsertOHLCV1m(ctx context.Context, poolID int64, bucketStart time.Time, price, volZig decimal.Decimal, tradeInc int64) error
}

// Aggregator upserts one-minute bars, bit-exact to the conflict-resolution
// table: open fixed on first insert, high/low widen, close tracks latest,
// volume/trade_count accumulate.
type Aggregator struct {
	store Store
}

func New(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Observe folds one trade's price and volume into the bar covering
// createdAt's UTC minute floor.
func (a *Aggregator) Observe(ctx context.Context, poolID int64, createdAt time.Time, price, volZig decimal.Decimal) error {
	bucketStart := createdAt.UTC().Truncate(time.Minute)
	return a.store.UpsertOHLCV1m(ctx, poolID, bucketStart, price, volZig, 1)
}

// Seed writes a zero-volume, zero-trade bar at createdAt's minute, used by
// the Fast-Track Reactor's seed-pricing stage so a freshly created pool is
// immediately queryable even before its first swap.
func (a *Aggregator) Seed(ctx context.Context, poolID int64, createdAt time.Time, price decimal.Decimal) error {
	bucketStart := createdAt.UTC().Truncate(time.Minute)
	return a.store.UpsertOHLCV1m(ctx, poolID, bucketStart, price, decimal.Zero, 0)
}
