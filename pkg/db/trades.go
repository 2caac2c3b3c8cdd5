package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/degenter/indexer/pkg/model"
)

// InsertTrades writes a batch of trades in a single parameterized statement
// with ON CONFLICT DO NOTHING on the natural key. pgx's CopyFrom cannot carry
// a conflict clause, so a batch is built as one multi-row INSERT instead —
// still a single round trip. Returns one id per input trade in the same
// order; a trade that hit the conflict clause (already inserted by a prior
// flush) comes back as 0.
func (d *DB) InsertTrades(ctx context.Context, trades []model.Trade) ([]int64, error) {
	if len(trades) == 0 {
		return nil, nil
	}
	const cols = 17
	var sb strings.Builder
	sb.WriteString(`INSERT INTO trades (created_at, tx_hash, pool_id, msg_index, action,
		direction, offer_denom, offer_amount_base, ask_denom, ask_amount_base,
		return_amount_base, reserve_leg1_denom, reserve_leg1_amt, reserve_leg2_denom,
		reserve_leg2_amt, is_router, height, signer, size_class) VALUES `)

	args := make([]any, 0, len(trades)*(cols+2))
	for i, t := range trades {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i*(cols+2) + 1
		sb.WriteString("(")
		for j := 0; j < cols+2; j++ {
			if j > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")

		var sizeClass *string
		if t.SizeClass != nil {
			s := string(*t.SizeClass)
			sizeClass = &s
		}
		args = append(args,
			t.CreatedAt, t.TxHash, t.PoolID, t.MsgIndex, string(t.Action),
			string(t.Direction), t.OfferDenom, t.OfferAmountBase, t.AskDenom, t.AskAmountBase,
			t.ReturnAmountBase, t.ReserveLeg1Denom, t.ReserveLeg1Amt, t.ReserveLeg2Denom,
			t.ReserveLeg2Amt, t.IsRouter, t.Height, t.Signer, sizeClass,
		)
	}
	sb.WriteString(" ON CONFLICT (tx_hash, pool_id, msg_index, created_at) DO NOTHING")
	sb.WriteString(" RETURNING id, tx_hash, pool_id, msg_index, created_at")

	rows, err := d.Pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("insert trades batch of %d: %w", len(trades), err)
	}
	defer rows.Close()

	inserted := make(map[tradeNaturalKey]int64, len(trades))
	for rows.Next() {
		var id, poolID int64
		var msgIndex int
		var txHash string
		var createdAt time.Time
		if err := rows.Scan(&id, &txHash, &poolID, &msgIndex, &createdAt); err != nil {
			return nil, fmt.Errorf("scan inserted trade id: %w", err)
		}
		inserted[tradeNaturalKey{txHash, poolID, msgIndex, createdAt.UnixNano()}] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(trades))
	for i, t := range trades {
		ids[i] = inserted[tradeNaturalKey{t.TxHash, t.PoolID, t.MsgIndex, t.CreatedAt.UnixNano()}]
	}
	return ids, nil
}

// tradeNaturalKey mirrors the trades table's unique constraint, used to map
// RETURNING rows back to their position in an insert batch.
type tradeNaturalKey struct {
	txHash      string
	poolID      int64
	msgIndex    int
	createdAtNs int64
}

// TradesSince returns up to limit trades ordered ascending by created_at with
// created_at strictly greater than watermark, the live broadcaster's pump
// query.
func (d *DB) TradesSince(ctx context.Context, watermark time.Time, limit int) ([]model.Trade, error) {
	const q = `
		SELECT id, created_at, tx_hash, pool_id, msg_index, action, direction,
			offer_denom, offer_amount_base, ask_denom, ask_amount_base,
			return_amount_base, reserve_leg1_denom, reserve_leg1_amt,
			reserve_leg2_denom, reserve_leg2_amt, is_router, height, signer, size_class
		FROM trades WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := d.Pool.Query(ctx, q, watermark, limit)
	if err != nil {
		return nil, fmt.Errorf("trades since %s: %w", watermark, err)
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		var action, direction string
		var sizeClass *string
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.TxHash, &t.PoolID, &t.MsgIndex, &action, &direction,
			&t.OfferDenom, &t.OfferAmountBase, &t.AskDenom, &t.AskAmountBase,
			&t.ReturnAmountBase, &t.ReserveLeg1Denom, &t.ReserveLeg1Amt,
			&t.ReserveLeg2Denom, &t.ReserveLeg2Amt, &t.IsRouter, &t.Height, &t.Signer, &sizeClass); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Action = model.Action(action)
		t.Direction = model.Direction(direction)
		if sizeClass != nil {
			sc := model.SizeClass(*sizeClass)
			t.SizeClass = &sc
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
