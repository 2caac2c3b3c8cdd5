package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UpsertOHLCV1m applies one trade's price/volume observation to the
// pool's one-minute bucket, bit-exact to the conflict-resolution table:
// open is fixed on first insert, high/low widen via max/min, close always
// tracks the latest price, and volume/trade_count accumulate.
func (d *DB) UpsertOHLCV1m(ctx context.Context, poolID int64, bucketStart time.Time, price, volZig decimal.Decimal, tradeInc int64) error {
	const q = `
		INSERT INTO ohlcv_1m (pool_id, bucket_start, open, high, low, close, volume_zig, trade_count)
		VALUES ($1,$2,$3,$3,$3,$3,$4,$5)
		ON CONFLICT (pool_id, bucket_start) DO UPDATE SET
			high = GREATEST(ohlcv_1m.high, EXCLUDED.high),
			low = LEAST(ohlcv_1m.low, EXCLUDED.low),
			close = EXCLUDED.close,
			volume_zig = ohlcv_1m.volume_zig + EXCLUDED.volume_zig,
			trade_count = ohlcv_1m.trade_count + EXCLUDED.trade_count`
	_, err := d.Pool.Exec(ctx, q, poolID, bucketStart, price, volZig, tradeInc)
	if err != nil {
		return fmt.Errorf("upsert ohlcv_1m pool=%d bucket=%s: %w", poolID, bucketStart, err)
	}
	return nil
}

// BucketFloor truncates t to the UTC minute floor, the bucket_start the
// aggregator keys on.
func BucketFloor(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}
