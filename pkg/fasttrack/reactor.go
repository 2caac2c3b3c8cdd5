// Package fasttrack is the Fast-Track Reactor: subscribes to pair_created
// and drives metadata, holder-count, security-scan, matrix-rollup, and
// seed-pricing enrichment for a freshly observed pool.
package fasttrack

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/degenter/indexer/pkg/chain"
	"github.com/degenter/indexer/pkg/model"
	"github.com/degenter/indexer/pkg/notify"
	"github.com/degenter/indexer/pkg/ohlcv"
	"github.com/degenter/indexer/pkg/priceengine"
	"github.com/degenter/indexer/pkg/registry"
	"github.com/degenter/indexer/pkg/scheduler"
)

// Reactor wires a notify.Bus subscription to the enrichment pipeline.
type Reactor struct {
	bus    *notify.Bus
	tokens *registry.TokenRegistry
	pools  *registry.PoolRegistry
	prices *priceengine.Engine
	bars   *ohlcv.Aggregator
	lcd    *chain.LCDClient
	rollup RollupRunner
	log    *zap.Logger
}

// RollupRunner computes and persists pool/token matrix rows across all
// buckets; kept as an interface so the reactor doesn't need direct DB
// access for a stage that is mostly aggregate-query plumbing.
type RollupRunner interface {
	RollupPool(ctx context.Context, poolID int64) error
	RollupToken(ctx context.Context, tokenID int64) error
}

func New(bus *notify.Bus, tokens *registry.TokenRegistry, pools *registry.PoolRegistry, prices *priceengine.Engine, bars *ohlcv.Aggregator, lcd *chain.LCDClient, rollup RollupRunner, log *zap.Logger) *Reactor {
	return &Reactor{bus: bus, tokens: tokens, pools: pools, prices: prices, bars: bars, lcd: lcd, rollup: rollup, log: log}
}

// Start subscribes to pair_created and runs every payload's enrichment on
// its own goroutine budget via the notify bus's per-subscription worker.
// It returns the unsubscribe func.
func (r *Reactor) Start() func() {
	return r.bus.Subscribe(model.TopicPairCreated, func(payload any) {
		p, ok := payload.(model.PairCreatedPayload)
		if !ok {
			return
		}
		ctx := context.Background()
		r.react(ctx, p)
	})
}

func (r *Reactor) react(ctx context.Context, p model.PairCreatedPayload) {
	tasks := []scheduler.Task{
		func(ctx context.Context) error { return r.refreshMetadata(ctx, p.BaseTokenID) },
		func(ctx context.Context) error { return r.refreshMetadata(ctx, p.QuoteTokenID) },
		func(ctx context.Context) error { return r.refreshHolders(ctx, p.BaseTokenID) },
		func(ctx context.Context) error {
			if p.IsUzigQuote {
				return nil // native quote has no holder-count surface
			}
			return r.refreshHolders(ctx, p.QuoteTokenID)
		},
		func(ctx context.Context) error { return r.securityScan(ctx, p.BaseTokenID) },
		func(ctx context.Context) error {
			if p.IsUzigQuote {
				return nil
			}
			return r.securityScan(ctx, p.QuoteTokenID)
		},
		func(ctx context.Context) error { return r.rollupAll(ctx, p) },
	}
	scheduler.RunWithConcurrency(ctx, tasks, len(tasks), "fasttrack", r.log)

	if p.IsUzigQuote {
		if err := r.seedPricing(ctx, p); err != nil && r.log != nil {
			r.log.Warn("seed pricing failed", zap.Int64("pool_id", p.PoolID), zap.Error(err))
		}
	}
}

func (r *Reactor) refreshMetadata(ctx context.Context, tokenID int64) error {
	tok, err := r.tokens.TokenByID(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("refresh metadata token %d: %w", tokenID, err)
	}
	return r.tokens.SetTokenMetaFromLCD(ctx, tokenID, tok.Denom, tok.Type)
}

func (r *Reactor) refreshHolders(ctx context.Context, tokenID int64) error {
	tok, err := r.tokens.TokenByID(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("refresh holders token %d: %w", tokenID, err)
	}
	isCW20 := tok.Type == model.TokenCW20
	count, ok, err := r.lcd.HolderCount(ctx, tok.Denom, isCW20)
	if err != nil {
		return fmt.Errorf("holder count %s: %w", tok.Denom, err)
	}
	if ok && count == 0 {
		count, ok, err = r.lcd.HolderCount(ctx, tok.Denom, isCW20)
		if err != nil {
			return fmt.Errorf("holder count retry %s: %w", tok.Denom, err)
		}
	}
	if !ok {
		return nil // holder count unsupported for this denom type
	}
	return r.tokens.SetHolderCount(ctx, tokenID, int64(count))
}

func (r *Reactor) securityScan(ctx context.Context, tokenID int64) error {
	tok, err := r.tokens.TokenByID(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("security scan token %d: %w", tokenID, err)
	}
	if tok.Type != model.TokenCW20 {
		return nil // native/factory/ibc denoms have no contract admin to scan
	}
	_, err = r.lcd.SecurityInfo(ctx, tok.Denom)
	if err != nil {
		return fmt.Errorf("security info %s: %w", tok.Denom, err)
	}
	return nil
}

func (r *Reactor) rollupAll(ctx context.Context, p model.PairCreatedPayload) error {
	if err := r.rollup.RollupPool(ctx, p.PoolID); err != nil {
		return fmt.Errorf("rollup pool %d: %w", p.PoolID, err)
	}
	if err := r.rollup.RollupToken(ctx, p.BaseTokenID); err != nil {
		return fmt.Errorf("rollup token %d: %w", p.BaseTokenID, err)
	}
	if !p.IsUzigQuote {
		if err := r.rollup.RollupToken(ctx, p.QuoteTokenID); err != nil {
			return fmt.Errorf("rollup token %d: %w", p.QuoteTokenID, err)
		}
	}
	return nil
}

// seedPricing fetches on-chain reserves for a freshly created native-quote
// pool once the base token's exponent is populated, and writes the first
// price and OHLCV bar so the pool is immediately queryable.
func (r *Reactor) seedPricing(ctx context.Context, p model.PairCreatedPayload) error {
	pool, ok, err := r.pools.PoolWithTokens(ctx, p.PairContract)
	if err != nil || !ok {
		return fmt.Errorf("resolve pool %s for seed pricing: %w", p.PairContract, err)
	}
	base, err := r.waitForExponent(ctx, p.BaseTokenID)
	if err != nil {
		return err
	}

	baseLeg, quoteLeg, err := r.prices.FetchPoolReserves(ctx, pool)
	if err != nil {
		return err
	}
	baseAmt := parseReserveAmount(baseLeg.Amount)
	quoteAmt := parseReserveAmount(quoteLeg.Amount)
	if baseAmt == nil || quoteAmt == nil {
		return fmt.Errorf("incomplete reserves for pool %d", pool.ID)
	}

	baseDisplay := model.ToDisplay(*baseAmt, base.Exponent)
	quoteDisplay := model.ToDisplay(*quoteAmt, model.UzigExponent)
	price := priceengine.PriceFromReserves(baseDisplay, quoteDisplay)
	if price.IsZero() {
		return nil
	}

	if err := r.prices.UpsertPrice(ctx, pool.BaseTokenID, pool.ID, price, true, pool.CreatedAt); err != nil {
		return fmt.Errorf("seed price pool %d: %w", pool.ID, err)
	}
	if err := r.bars.Seed(ctx, pool.ID, pool.CreatedAt, price); err != nil {
		return fmt.Errorf("seed ohlcv pool %d: %w", pool.ID, err)
	}
	return nil
}

func parseReserveAmount(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// waitForExponent returns the token row once its exponent is positive,
// polling every 200ms for up to 5s. react calls seedPricing only after the
// metadata refresh tasks have finished, and a denom-only row already
// carries the default exponent 6, so the first read normally returns.
func (r *Reactor) waitForExponent(ctx context.Context, tokenID int64) (model.Token, error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		tok, err := r.tokens.TokenByID(ctx, tokenID)
		if err != nil {
			return model.Token{}, fmt.Errorf("wait for exponent token %d: %w", tokenID, err)
		}
		if tok.Exponent > 0 || time.Now().After(deadline) {
			return *tok, nil
		}
		select {
		case <-ctx.Done():
			return model.Token{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
