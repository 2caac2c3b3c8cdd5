package db

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// UpsertPoolState overwrites a pool's last-observed reserves. Called on
// every swap; there is no history kept beyond the price-tick series.
func (d *DB) UpsertPoolState(ctx context.Context, poolID int64, baseDenom string, baseAmount decimal.Decimal, quoteDenom string, quoteAmount decimal.Decimal) error {
	const q = `
		INSERT INTO pool_state (pool_id, base_denom, base_amount, quote_denom, quote_amount, updated_at)
		VALUES ($1,$2,$3,$4,$5, now())
		ON CONFLICT (pool_id) DO UPDATE SET
			base_denom = EXCLUDED.base_denom, base_amount = EXCLUDED.base_amount,
			quote_denom = EXCLUDED.quote_denom, quote_amount = EXCLUDED.quote_amount,
			updated_at = now()`
	_, err := d.Pool.Exec(ctx, q, poolID, baseDenom, baseAmount, quoteDenom, quoteAmount)
	if err != nil {
		return fmt.Errorf("upsert pool_state %d: %w", poolID, err)
	}
	return nil
}
