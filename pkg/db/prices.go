package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UpsertPrice writes the latest price for (token_id, pool_id) and appends a
// price-tick row. Monotone-in-time under normal operation: callers are
// expected to only call this with a newer observedAt than the last write,
// but the upsert itself does not enforce that — it is a last-writer-wins
// overwrite, matching the "normal operation" qualifier.
func (d *DB) UpsertPrice(ctx context.Context, tokenID, poolID int64, priceInZig decimal.Decimal, isPairNative bool, observedAt time.Time) error {
	const upsertQ = `
		INSERT INTO prices (token_id, pool_id, price_in_zig, is_pair_native, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (token_id, pool_id) DO UPDATE SET
			price_in_zig = EXCLUDED.price_in_zig, is_pair_native = EXCLUDED.is_pair_native,
			updated_at = EXCLUDED.updated_at`
	if _, err := d.Pool.Exec(ctx, upsertQ, tokenID, poolID, priceInZig, isPairNative, observedAt); err != nil {
		return fmt.Errorf("upsert price token=%d pool=%d: %w", tokenID, poolID, err)
	}

	const tickQ = `INSERT INTO price_ticks (token_id, pool_id, price_in_zig, observed_at) VALUES ($1,$2,$3,$4)`
	if _, err := d.Pool.Exec(ctx, tickQ, tokenID, poolID, priceInZig, observedAt); err != nil {
		return fmt.Errorf("insert price_tick token=%d pool=%d: %w", tokenID, poolID, err)
	}
	return nil
}

// LatestPrice fetches the current (token_id, pool_id) price row, if any.
func (d *DB) LatestPrice(ctx context.Context, tokenID, poolID int64) (decimal.Decimal, bool, error) {
	const q = `SELECT price_in_zig FROM prices WHERE token_id = $1 AND pool_id = $2`
	var p decimal.Decimal
	err := d.Pool.QueryRow(ctx, q, tokenID, poolID).Scan(&p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("latest price token=%d pool=%d: %w", tokenID, poolID, err)
	}
	return p, true, nil
}
