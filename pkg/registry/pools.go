package registry

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/degenter/indexer/pkg/model"
	"github.com/degenter/indexer/pkg/notify"
)

// PoolStore is the subset of *db.DB the Pool Registry depends on.
type PoolStore interface {
	EnsureUnknownDEX(ctx context.Context) (int64, error)
	EnsureDEX(ctx context.Context, name, factoryContract, routerContract string) (int64, error)
	UpsertPool(ctx context.Context, p model.Pool) (int64, error)
	PoolByPairContract(ctx context.Context, pairContract string) (*model.Pool, error)
}

// PoolRegistry fronts the pools table with a (pair_contract -> pool) cache
// bound to this instance's lifetime, and publishes pair_created the first
// time a pair_contract is upserted.
type PoolRegistry struct {
	store PoolStore
	bus   *notify.Bus
	cache *lru.Cache[string, model.Pool]
}

// NewPoolRegistry builds a registry with a bounded pair-contract cache.
func NewPoolRegistry(store PoolStore, bus *notify.Bus, cacheSize int) (*PoolRegistry, error) {
	cache, err := lru.New[string, model.Pool](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("new pool cache: %w", err)
	}
	return &PoolRegistry{store: store, bus: bus, cache: cache}, nil
}

// UpsertPool creates a pool row on create_pair (or returns the cached row
// for an already-known pair_contract), publishing pair_created on first
// sighting only.
func (r *PoolRegistry) UpsertPool(ctx context.Context, p model.Pool) (model.Pool, error) {
	if cached, ok := r.cache.Get(p.PairContract); ok {
		return cached, nil
	}

	id, err := r.store.UpsertPool(ctx, p)
	if err != nil {
		return model.Pool{}, err
	}
	p.ID = id
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.cache.Add(p.PairContract, p)

	r.bus.Publish(model.TopicPairCreated, model.PairCreatedPayload{
		PoolID:       p.ID,
		PairContract: p.PairContract,
		BaseDenom:    p.BaseDenom,
		QuoteDenom:   p.QuoteDenom,
		BaseTokenID:  p.BaseTokenID,
		QuoteTokenID: p.QuoteTokenID,
		IsUzigQuote:  p.IsUzigQuote,
		CreatedAt:    p.CreatedAt,
	})
	return p, nil
}

// PoolWithTokens resolves a pair_contract to its full pool row, preferring
// the in-memory cache populated by Phase-1/prefetch; falls through to the
// store (and populates the cache) on a miss.
func (r *PoolRegistry) PoolWithTokens(ctx context.Context, pairContract string) (model.Pool, bool, error) {
	if cached, ok := r.cache.Get(pairContract); ok {
		return cached, true, nil
	}
	p, err := r.store.PoolByPairContract(ctx, pairContract)
	if err != nil {
		return model.Pool{}, false, nil
	}
	r.cache.Add(pairContract, *p)
	return *p, true, nil
}

// Prefetch loads every pair_contract in pairContracts into the cache in one
// pass, the step the Block Processor runs between Phase-1 and Phase-2 so
// Phase-2 readers see a consistent snapshot.
func (r *PoolRegistry) Prefetch(ctx context.Context, pairContracts []string) error {
	for _, pc := range pairContracts {
		if _, ok := r.cache.Get(pc); ok {
			continue
		}
		p, err := r.store.PoolByPairContract(ctx, pc)
		if err != nil {
			continue // unresolved pool; caller's swap/liquidity task will fail individually
		}
		r.cache.Add(pc, *p)
	}
	return nil
}

// EnsureUnknownDEX returns the synthetic UnknownDEX catalogue id, inserting
// it lazily on first use.
func (r *PoolRegistry) EnsureUnknownDEX(ctx context.Context) (int64, error) {
	return r.store.EnsureUnknownDEX(ctx)
}

// EnsureDEX resolves a named, configured DEX's catalogue id by its factory
// contract, inserting or updating its router_contract on first use.
func (r *PoolRegistry) EnsureDEX(ctx context.Context, name, factoryContract, routerContract string) (int64, error) {
	return r.store.EnsureDEX(ctx, name, factoryContract, routerContract)
}
