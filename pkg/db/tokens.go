package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/model"
)

// UpsertTokenMinimal inserts a denom-only token row if it doesn't exist yet,
// and returns its ID either way. Called on first sighting of a denom; never
// overwrites metadata already populated by SetTokenMetaFromLCD.
func (d *DB) UpsertTokenMinimal(ctx context.Context, denom string, typ model.TokenType) (int64, error) {
	const q = `
		INSERT INTO tokens (denom, type, exponent)
		VALUES ($1, $2, 6)
		ON CONFLICT (denom) DO UPDATE SET denom = EXCLUDED.denom
		RETURNING id`
	var id int64
	if err := d.Pool.QueryRow(ctx, q, denom, string(typ)).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert token %s: %w", denom, err)
	}
	return id, nil
}

// SetTokenMetaFromLCD writes enrichment fields pulled from the chain's LCD:
// name, symbol, display, exponent, supply, socials. Best-effort: callers
// tolerate this racing with concurrent Fast-Track refreshes for the same
// token, so later writes simply overwrite earlier ones.
func (d *DB) SetTokenMetaFromLCD(ctx context.Context, tokenID int64, name, symbol, display *string, exponent int, supply *decimal.Decimal, socials map[string]string) error {
	var socialsJSON []byte
	if len(socials) > 0 {
		var err error
		socialsJSON, err = json.Marshal(socials)
		if err != nil {
			return fmt.Errorf("marshal socials: %w", err)
		}
	}
	const q = `
		UPDATE tokens SET name = $2, symbol = $3, display = $4, exponent = $5,
			supply = $6, socials = $7
		WHERE id = $1`
	_, err := d.Pool.Exec(ctx, q, tokenID, name, symbol, display, exponent, supply, socialsJSON)
	if err != nil {
		return fmt.Errorf("set token meta %d: %w", tokenID, err)
	}
	return nil
}

// TokenByID fetches a single token row.
func (d *DB) TokenByID(ctx context.Context, id int64) (*model.Token, error) {
	const q = `SELECT id, denom, type, name, symbol, display, exponent, supply, socials, holder_count FROM tokens WHERE id = $1`
	return d.scanToken(d.Pool.QueryRow(ctx, q, id))
}

// TokenByDenom fetches a single token row by its unique denom.
func (d *DB) TokenByDenom(ctx context.Context, denom string) (*model.Token, error) {
	const q = `SELECT id, denom, type, name, symbol, display, exponent, supply, socials, holder_count FROM tokens WHERE denom = $1`
	return d.scanToken(d.Pool.QueryRow(ctx, q, denom))
}

// SetHolderCount records the most recent holder-count observation for a
// token, refreshed by the Fast-Track Reactor's holder-count stage.
func (d *DB) SetHolderCount(ctx context.Context, tokenID int64, count int64) error {
	const q = `UPDATE tokens SET holder_count = $2 WHERE id = $1`
	_, err := d.Pool.Exec(ctx, q, tokenID, count)
	if err != nil {
		return fmt.Errorf("set holder count %d: %w", tokenID, err)
	}
	return nil
}

// TokensMissingMetadata returns up to limit token IDs whose symbol has
// never been populated, oldest first, for the metadata backfill sweep.
func (d *DB) TokensMissingMetadata(ctx context.Context, limit int) ([]int64, error) {
	const q = `SELECT id FROM tokens WHERE symbol IS NULL ORDER BY id ASC LIMIT $1`
	rows, err := d.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("tokens missing metadata: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tokens missing metadata: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (d *DB) scanToken(row rowScanner) (*model.Token, error) {
	var t model.Token
	var typ string
	var socialsJSON []byte
	if err := row.Scan(&t.ID, &t.Denom, &typ, &t.Name, &t.Symbol, &t.Display, &t.Exponent, &t.Supply, &socialsJSON, &t.HolderCount); err != nil {
		return nil, err
	}
	t.Type = model.TokenType(typ)
	if len(socialsJSON) > 0 {
		_ = json.Unmarshal(socialsJSON, &t.Socials)
	}
	return &t, nil
}
