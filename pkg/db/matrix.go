package db

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/model"
)

// UpsertPoolMatrix overwrites one pool's rolled-up stats for a single
// bucket window.
func (d *DB) UpsertPoolMatrix(ctx context.Context, poolID int64, bucket model.Bucket, volumeZig decimal.Decimal, tradeCount int64, priceDelta decimal.Decimal) error {
	const q = `
		INSERT INTO pool_matrix (pool_id, bucket, volume_zig, trade_count, price_delta, updated_at)
		VALUES ($1,$2,$3,$4,$5, now())
		ON CONFLICT (pool_id, bucket) DO UPDATE SET
			volume_zig = EXCLUDED.volume_zig, trade_count = EXCLUDED.trade_count,
			price_delta = EXCLUDED.price_delta, updated_at = now()`
	_, err := d.Pool.Exec(ctx, q, poolID, string(bucket), volumeZig, tradeCount, priceDelta)
	if err != nil {
		return fmt.Errorf("upsert pool_matrix pool=%d bucket=%s: %w", poolID, bucket, err)
	}
	return nil
}

// UpsertTokenMatrix overwrites one token's rolled-up stats for a single
// bucket window.
func (d *DB) UpsertTokenMatrix(ctx context.Context, tokenID int64, bucket model.Bucket, volumeZig decimal.Decimal, tradeCount int64, priceDelta decimal.Decimal) error {
	const q = `
		INSERT INTO token_matrix (token_id, bucket, volume_zig, trade_count, price_delta, updated_at)
		VALUES ($1,$2,$3,$4,$5, now())
		ON CONFLICT (token_id, bucket) DO UPDATE SET
			volume_zig = EXCLUDED.volume_zig, trade_count = EXCLUDED.trade_count,
			price_delta = EXCLUDED.price_delta, updated_at = now()`
	_, err := d.Pool.Exec(ctx, q, tokenID, string(bucket), volumeZig, tradeCount, priceDelta)
	if err != nil {
		return fmt.Errorf("upsert token_matrix token=%d bucket=%s: %w", tokenID, bucket, err)
	}
	return nil
}

// PoolVolumeSince sums a pool's swap volume (the native-quote leg of each
// swap, in native-quote display units) and swap count since the given
// cutoff, the raw figures the matrix rollup stage upserts per bucket.
func (d *DB) PoolVolumeSince(ctx context.Context, poolID int64, sinceMinutesAgo int) (decimal.Decimal, int64, error) {
	const q = `
		SELECT COALESCE(SUM(CASE
				WHEN offer_denom = 'uzig' THEN offer_amount_base
				WHEN ask_denom = 'uzig' THEN ask_amount_base
				ELSE 0 END) / 1000000, 0), COUNT(*)
		FROM trades
		WHERE pool_id = $1 AND created_at > now() - ($2 || ' minutes')::interval AND action = 'swap'`
	var vol decimal.Decimal
	var count int64
	if err := d.Pool.QueryRow(ctx, q, poolID, sinceMinutesAgo).Scan(&vol, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("pool volume since pool=%d: %w", poolID, err)
	}
	return vol, count, nil
}

// TokenVolumeSince sums trade volume and count across every pool where
// tokenID is the base token, since the given cutoff.
func (d *DB) TokenVolumeSince(ctx context.Context, tokenID int64, sinceMinutesAgo int) (decimal.Decimal, int64, error) {
	const q = `
		SELECT COALESCE(SUM(CASE
				WHEN t.offer_denom = 'uzig' THEN t.offer_amount_base
				WHEN t.ask_denom = 'uzig' THEN t.ask_amount_base
				ELSE 0 END) / 1000000, 0), COUNT(*)
		FROM trades t
		JOIN pools p ON p.id = t.pool_id
		WHERE p.base_token_id = $1 AND t.created_at > now() - ($2 || ' minutes')::interval AND t.action = 'swap'`
	var vol decimal.Decimal
	var count int64
	if err := d.Pool.QueryRow(ctx, q, tokenID, sinceMinutesAgo).Scan(&vol, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("token volume since token=%d: %w", tokenID, err)
	}
	return vol, count, nil
}

// InsertLargeTrade records a trade that crossed a bucket's large-trade
// notional threshold.
func (d *DB) InsertLargeTrade(ctx context.Context, tradeID int64, bucket model.Bucket, valueZig decimal.Decimal) error {
	const q = `INSERT INTO large_trades (trade_id, bucket, value_zig) VALUES ($1,$2,$3)`
	_, err := d.Pool.Exec(ctx, q, tradeID, string(bucket), valueZig)
	if err != nil {
		return fmt.Errorf("insert large_trade trade=%d: %w", tradeID, err)
	}
	return nil
}
