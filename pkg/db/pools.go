package db

import (
	"context"
	"fmt"

	"github.com/degenter/indexer/pkg/model"
)

// UnknownDEXFactory is the synthetic factory_contract value recorded for
// pools whose creating factory was never seen by this process.
const UnknownDEXFactory = ""

// EnsureUnknownDEX lazily inserts the synthetic UnknownDEX catalogue row the
// first time an unrecognized factory is encountered, returning its dex_id.
func (d *DB) EnsureUnknownDEX(ctx context.Context) (int64, error) {
	const q = `
		INSERT INTO dex_catalogue (name, factory_contract)
		VALUES ('UnknownDEX', $1)
		ON CONFLICT (factory_contract) DO UPDATE SET name = dex_catalogue.name
		RETURNING dex_id`
	var id int64
	if err := d.Pool.QueryRow(ctx, q, UnknownDEXFactory).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure unknown dex: %w", err)
	}
	return id, nil
}

// EnsureDEX inserts or looks up a named DEX's catalogue row by its factory
// contract address.
func (d *DB) EnsureDEX(ctx context.Context, name, factoryContract, routerContract string) (int64, error) {
	const q = `
		INSERT INTO dex_catalogue (name, factory_contract, router_contract)
		VALUES ($1, $2, $3)
		ON CONFLICT (factory_contract) DO UPDATE SET router_contract = EXCLUDED.router_contract
		RETURNING dex_id`
	var id int64
	if err := d.Pool.QueryRow(ctx, q, name, factoryContract, routerContract).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure dex %s: %w", name, err)
	}
	return id, nil
}

// UpsertPool inserts a pool row on create_pair, or returns the existing row's
// ID when the pair contract was already seen (mutable only via an explicit
// upsert elsewhere).
func (d *DB) UpsertPool(ctx context.Context, p model.Pool) (int64, error) {
	const q = `
		INSERT INTO pools (pair_contract, dex_id, base_token_id, quote_token_id,
			base_denom, quote_denom, pair_type, is_uzig_quote, creator,
			create_tx_hash, create_height)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (pair_contract) DO UPDATE SET pair_contract = EXCLUDED.pair_contract
		RETURNING id`
	var id int64
	err := d.Pool.QueryRow(ctx, q,
		p.PairContract, p.DexID, p.BaseTokenID, p.QuoteTokenID,
		p.BaseDenom, p.QuoteDenom, string(p.PairType), p.IsUzigQuote, p.Creator,
		p.CreateTxHash, p.CreateHeight,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert pool %s: %w", p.PairContract, err)
	}
	return id, nil
}

// PoolByPairContract fetches a pool's full row plus its denoms, the shape
// the prefetch cache keys on.
func (d *DB) PoolByPairContract(ctx context.Context, pairContract string) (*model.Pool, error) {
	const q = `
		SELECT id, pair_contract, dex_id, base_token_id, quote_token_id,
			base_denom, quote_denom, pair_type, is_uzig_quote, creator,
			create_tx_hash, create_height, created_at
		FROM pools WHERE pair_contract = $1`
	return d.scanPool(d.Pool.QueryRow(ctx, q, pairContract))
}

// PoolByID fetches a pool's full row by its surrogate key.
func (d *DB) PoolByID(ctx context.Context, id int64) (*model.Pool, error) {
	const q = `
		SELECT id, pair_contract, dex_id, base_token_id, quote_token_id,
			base_denom, quote_denom, pair_type, is_uzig_quote, creator,
			create_tx_hash, create_height, created_at
		FROM pools WHERE id = $1`
	return d.scanPool(d.Pool.QueryRow(ctx, q, id))
}

func (d *DB) scanPool(row rowScanner) (*model.Pool, error) {
	var p model.Pool
	var pairType string
	if err := row.Scan(&p.ID, &p.PairContract, &p.DexID, &p.BaseTokenID, &p.QuoteTokenID,
		&p.BaseDenom, &p.QuoteDenom, &pairType, &p.IsUzigQuote, &p.Creator,
		&p.CreateTxHash, &p.CreateHeight, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.PairType = model.PairType(pairType)
	return &p, nil
}
