package db

import (
	"context"
	"fmt"
)

// LastHeight returns the single index_state row's high-water mark.
func (d *DB) LastHeight(ctx context.Context) (int64, error) {
	const q = `SELECT last_height FROM index_state WHERE id = true`
	var h int64
	if err := d.Pool.QueryRow(ctx, q).Scan(&h); err != nil {
		return 0, fmt.Errorf("last height: %w", err)
	}
	return h, nil
}

// SetLastHeight advances the high-water mark. Called only after a height's
// processing has fully succeeded; on a fatal mid-height error the caller
// must not call this, so the next run reprocesses the same height.
func (d *DB) SetLastHeight(ctx context.Context, height int64) error {
	const q = `UPDATE index_state SET last_height = $1 WHERE id = true`
	_, err := d.Pool.Exec(ctx, q, height)
	if err != nil {
		return fmt.Errorf("set last height %d: %w", height, err)
	}
	return nil
}
