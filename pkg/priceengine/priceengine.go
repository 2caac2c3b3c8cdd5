// Package priceengine maintains each pool's last-observed reserves and
// derives token prices denominated in the native quote from them.
package priceengine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/chain"
	"github.com/degenter/indexer/pkg/model"
)

// Store is the subset of *db.DB the price engine writes through.
type Store interface {
	UpsertPoolState(ctx context.Context, poolID int64, baseDenom string, baseAmount decimal.Decimal, quoteDenom string, quoteAmount decimal.Decimal) error
	UpsertPrice(ctx context.Context, tokenID, poolID int64, priceInZig decimal.Decimal, isPairNative bool, observedAt time.Time) error
}

// Engine computes prices from reserves and persists both pool_state and
// prices/price_ticks.
type Engine struct {
	store Store
	lcd   *chain.LCDClient
}

func New(store Store, lcd *chain.LCDClient) *Engine {
	return &Engine{store: store, lcd: lcd}
}

// UpsertPoolState overwrites a pool's last-observed reserves.
func (e *Engine) UpsertPoolState(ctx context.Context, pool model.Pool, baseAmount, quoteAmount decimal.Decimal) error {
	return e.store.UpsertPoolState(ctx, pool.ID, pool.BaseDenom, baseAmount, pool.QuoteDenom, quoteAmount)
}

// PriceFromReserves computes the base token's price in the native quote
// from a pool's reserve legs, both already in display units:
// price = quoteReserveDisplay / baseReserveDisplay. Returns zero if the
// base reserve is zero (cannot price against an empty pool).
func PriceFromReserves(baseReserveDisplay, quoteReserveDisplay decimal.Decimal) decimal.Decimal {
	if baseReserveDisplay.IsZero() {
		return decimal.Zero
	}
	return quoteReserveDisplay.Div(baseReserveDisplay)
}

// UpsertPrice writes the latest price for a token against a pool and
// appends a price-tick observation.
func (e *Engine) UpsertPrice(ctx context.Context, tokenID, poolID int64, priceInZig decimal.Decimal, isPairNative bool, observedAt time.Time) error {
	return e.store.UpsertPrice(ctx, tokenID, poolID, priceInZig, isPairNative, observedAt)
}

// FetchPoolReserves queries a pair contract's current on-chain reserves via
// the LCD and matches the two returned legs to pool's base/quote denoms,
// used by the Fast-Track Reactor's seed-pricing stage where no swap has
// happened yet to derive pool_state from.
func (e *Engine) FetchPoolReserves(ctx context.Context, pool model.Pool) (base, quote chain.AssetAmount, err error) {
	legs, err := e.lcd.PoolReserves(ctx, pool.PairContract)
	if err != nil {
		return chain.AssetAmount{}, chain.AssetAmount{}, fmt.Errorf("fetch pool reserves %s: %w", pool.PairContract, err)
	}
	for _, leg := range legs {
		switch leg.Denom {
		case pool.BaseDenom:
			base = leg
		case pool.QuoteDenom:
			quote = leg
		}
	}
	return base, quote, nil
}
