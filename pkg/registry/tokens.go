// Package registry is the Token Registry and Pool Registry: LRU-cached
// fronts over the Postgres tokens/pools tables, with the Pool Registry
// additionally publishing pair_created notifications on first sighting.
package registry

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/chain"
	"github.com/degenter/indexer/pkg/model"
	"github.com/degenter/indexer/pkg/scheduler"
)

// TokenStore is the subset of *db.DB the Token Registry depends on.
type TokenStore interface {
	UpsertTokenMinimal(ctx context.Context, denom string, typ model.TokenType) (int64, error)
	SetTokenMetaFromLCD(ctx context.Context, tokenID int64, name, symbol, display *string, exponent int, supply *decimal.Decimal, socials map[string]string) error
	TokenByID(ctx context.Context, id int64) (*model.Token, error)
	TokenByDenom(ctx context.Context, denom string) (*model.Token, error)
	SetHolderCount(ctx context.Context, tokenID int64, count int64) error
}

// TokenRegistry fronts the tokens table with a denom-seen LRU cache bound
// to this instance's lifetime, per the caches-are-not-global invariant.
type TokenRegistry struct {
	store TokenStore
	lcd   *chain.LCDClient
	seen  *lru.Cache[string, int64] // denom -> token id
}

// NewTokenRegistry builds a registry with a bounded denom-seen cache.
func NewTokenRegistry(store TokenStore, lcd *chain.LCDClient, cacheSize int) (*TokenRegistry, error) {
	cache, err := lru.New[string, int64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("new token cache: %w", err)
	}
	return &TokenRegistry{store: store, lcd: lcd, seen: cache}, nil
}

// UpsertTokenMinimal returns the token id for denom, creating a denom-only
// row on first sighting. Subsequent calls for the same denom hit the cache.
func (r *TokenRegistry) UpsertTokenMinimal(ctx context.Context, denom string, typ model.TokenType) (int64, error) {
	if id, ok := r.seen.Get(denom); ok {
		return id, nil
	}
	id, err := r.store.UpsertTokenMinimal(ctx, denom, typ)
	if err != nil {
		return 0, err
	}
	r.seen.Add(denom, id)
	return id, nil
}

// IsFirstSighting reports whether denom is not yet in the seen cache,
// without adding it; callers use this to decide whether to queue a
// low-priority metadata fetch.
func (r *TokenRegistry) IsFirstSighting(denom string) bool {
	_, ok := r.seen.Get(denom)
	return !ok
}

// SetTokenMetaFromLCD enriches a token from chain state. For cw20 tokens it
// writes name, symbol (also used as display), decimals as exponent, and
// total supply from token_info. For every other denom it writes only the
// bank supply and exponent 6; name, symbol and display are left empty.
// Best-effort: a failure here leaves the
// denom-only row in place and is safe to retry on the next refresh cycle.
func (r *TokenRegistry) SetTokenMetaFromLCD(ctx context.Context, tokenID int64, denom string, typ model.TokenType) error {
	switch typ {
	case model.TokenCW20:
		info, err := r.lcd.CW20TokenInfo(ctx, denom)
		if err != nil {
			return fmt.Errorf("cw20 token info %s: %w", denom, err)
		}
		supply, err := decimal.NewFromString(info.TotalSupply)
		if err != nil {
			return fmt.Errorf("parse cw20 supply %s: %w", denom, err)
		}
		name, symbol := info.Name, info.Symbol
		return r.store.SetTokenMetaFromLCD(ctx, tokenID, &name, &symbol, &symbol, info.Decimals, &supply, nil)
	default:
		resp, err := r.lcd.BankSupply(ctx, denom)
		if err != nil {
			return fmt.Errorf("bank supply %s: %w", denom, err)
		}
		supply, err := decimal.NewFromString(resp.Amount.Amount)
		if err != nil {
			return fmt.Errorf("parse bank supply %s: %w", denom, err)
		}
		return r.store.SetTokenMetaFromLCD(ctx, tokenID, nil, nil, nil, model.UzigExponent, &supply, nil)
	}
}

// TokenByID fetches a token row, bypassing the denom cache.
func (r *TokenRegistry) TokenByID(ctx context.Context, id int64) (*model.Token, error) {
	return r.store.TokenByID(ctx, id)
}

// SetHolderCount persists the Fast-Track Reactor's holder-count observation.
func (r *TokenRegistry) SetHolderCount(ctx context.Context, tokenID int64, count int64) error {
	return r.store.SetHolderCount(ctx, tokenID, count)
}

// BackfillStore is the subset of *db.DB the metadata backfill sweep needs,
// beyond what TokenStore already covers.
type BackfillStore interface {
	TokensMissingMetadata(ctx context.Context, limit int) ([]int64, error)
}

// BackfillOnce scans up to batchSize tokens still missing metadata and
// refreshes each one, at most concurrency in flight at a time. It is the
// sweep the Fast-Track Reactor's per-pair refresh can miss (a denom seen
// before the registry existed, or whose enrichment call failed).
func (r *TokenRegistry) BackfillOnce(ctx context.Context, backfill BackfillStore, batchSize, concurrency int) scheduler.Summary {
	ids, err := backfill.TokensMissingMetadata(ctx, batchSize)
	if err != nil || len(ids) == 0 {
		return scheduler.Summary{Label: "meta.backfill"}
	}

	tasks := make([]scheduler.Task, len(ids))
	for i, id := range ids {
		id := id
		tasks[i] = func(ctx context.Context) error {
			tok, err := r.TokenByID(ctx, id)
			if err != nil {
				return fmt.Errorf("backfill lookup token %d: %w", id, err)
			}
			return r.SetTokenMetaFromLCD(ctx, id, tok.Denom, tok.Type)
		}
	}
	return scheduler.RunWithConcurrency(ctx, tasks, concurrency, "meta.backfill", nil)
}
