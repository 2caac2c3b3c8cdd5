// Package broadcast tails the trades table and fans shaped rows to
// websocket subscribers, keyed by a global, per-token, and per-pair topic.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/degenter/indexer/pkg/model"
)

// TradeSource is the subset of *db.DB the pump reads from.
type TradeSource interface {
	TradesSince(ctx context.Context, watermark time.Time, limit int) ([]model.Trade, error)
}

// TokenSource resolves a trade's base token for topic shaping.
type TokenSource interface {
	TokenByID(ctx context.Context, id int64) (*model.Token, error)
	PoolByID(ctx context.Context, id int64) (*model.Pool, error)
}

// Publisher is the subset of *wsserver.Hub the pump publishes through.
type Publisher interface {
	Publish(topic string, frame []byte)
}

// TradeFrame is the wire shape of one broadcast trade, per the documented
// WebSocket payload.
type TradeFrame struct {
	Type string    `json:"type"`
	Data TradeData `json:"data"`
}

type TradeData struct {
	Time             time.Time `json:"time"`
	TxHash           string    `json:"txHash"`
	PairContract     string    `json:"pairContract"`
	Signer           string    `json:"signer"`
	Direction        string    `json:"direction"`
	OfferDenom       string    `json:"offerDenom"`
	OfferAmountBase  string    `json:"offerAmountBase,omitempty"`
	OfferAmount      float64   `json:"offerAmount"`
	AskDenom         string    `json:"askDenom"`
	AskAmountBase    string    `json:"askAmountBase,omitempty"`
	AskAmount        float64   `json:"askAmount"`
	ReturnAmountBase string    `json:"returnAmountBase,omitempty"`
	ReturnAmount     float64   `json:"returnAmount"`
	ValueNative      float64   `json:"valueNative"`
	ValueUsd         float64   `json:"valueUsd"`
}

const (
	topicTradesStream = "trades.stream"
	pollInterval      = 2 * time.Second
	pumpBatchLimit    = 200
	coldStartLookback = 10 * time.Minute
)

// Pump polls TradesSince on a fixed interval and fans shaped frames out to
// the global, per-token, and per-pair topics.
type Pump struct {
	trades TradeSource
	tokens TokenSource
	pub    Publisher
	log    *zap.Logger

	watermark time.Time
}

func NewPump(trades TradeSource, tokens TokenSource, pub Publisher, log *zap.Logger) *Pump {
	return &Pump{trades: trades, tokens: tokens, pub: pub, log: log, watermark: time.Now().Add(-coldStartLookback)}
}

// Run polls until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.tick(ctx); err != nil && p.log != nil {
				p.log.Warn("trade pump tick failed", zap.Error(err))
			}
		}
	}
}

func (p *Pump) tick(ctx context.Context) error {
	trades, err := p.trades.TradesSince(ctx, p.watermark, pumpBatchLimit)
	if err != nil {
		return fmt.Errorf("trades since %s: %w", p.watermark, err)
	}
	for _, t := range trades {
		p.publishOne(ctx, t)
		p.watermark = t.CreatedAt
	}
	return nil
}

// publishOne shapes and fans out one trade row, swap or liquidity action
// alike: every inserted trade gets at least one trades.stream frame. Only
// swap rows have a meaningful valueNative (the native-quote leg of the
// swap); provide/withdraw rows carry valueNative=0 unless one side of the
// deposit/withdrawal happens to be the native quote itself.
func (p *Pump) publishOne(ctx context.Context, t model.Trade) {
	pool, err := p.tokens.PoolByID(ctx, t.PoolID)
	if err != nil {
		if p.log != nil {
			p.log.Warn("broadcast: pool lookup failed", zap.Int64("pool_id", t.PoolID), zap.Error(err))
		}
		return
	}
	baseTok, err := p.tokens.TokenByID(ctx, pool.BaseTokenID)
	if err != nil {
		if p.log != nil {
			p.log.Warn("broadcast: token lookup failed", zap.Int64("token_id", pool.BaseTokenID), zap.Error(err))
		}
		return
	}

	frame := shape(t, *pool, *baseTok)
	encoded, err := marshalFrame(frame)
	if err != nil {
		return
	}

	p.pub.Publish(topicTradesStream, encoded)
	if baseTok.Symbol != nil {
		p.pub.Publish(topicTradesStream+".token:"+*baseTok.Symbol, encoded)
	}
	p.pub.Publish(topicTradesStream+".token:"+strconv.FormatInt(baseTok.ID, 10), encoded)
	p.pub.Publish(topicTradesStream+".token:"+baseTok.Denom, encoded)
	p.pub.Publish(topicTradesStream+".pair:"+pool.PairContract, encoded)
}

// shape converts a persisted trade row into the broadcast wire shape,
// regardless of action; OHLCV observation remains swap-only upstream, but
// the trade stream fans out every row.
func shape(t model.Trade, pool model.Pool, baseTok model.Token) TradeFrame {
	exponent := baseTok.Exponent
	return TradeFrame{
		Type: "trade",
		Data: TradeData{
			Time:             t.CreatedAt,
			TxHash:           t.TxHash,
			PairContract:     pool.PairContract,
			Signer:           t.Signer,
			Direction:        string(t.Direction),
			OfferDenom:       t.OfferDenom,
			OfferAmountBase:  decimalString(t.OfferAmountBase),
			OfferAmount:      displayFloat(t.OfferAmountBase, exponent),
			AskDenom:         t.AskDenom,
			AskAmountBase:    decimalString(t.AskAmountBase),
			AskAmount:        displayFloat(t.AskAmountBase, exponent),
			ReturnAmountBase: decimalString(t.ReturnAmountBase),
			ReturnAmount:     displayFloat(t.ReturnAmountBase, exponent),
			ValueNative:      nativeValue(t, exponent),
			ValueUsd:         0, // no USD price oracle in scope; shapers downstream may apply one
		},
	}
}

func marshalFrame(frame TradeFrame) ([]byte, error) {
	b, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal trade frame: %w", err)
	}
	return b, nil
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func displayFloat(d *decimal.Decimal, exponent int) float64 {
	if d == nil {
		return 0
	}
	f, _ := model.ToDisplay(*d, exponent).Float64()
	return f
}

// nativeValue reports the trade's notional in native-quote display units,
// the same quantity the Trade Sink uses to derive size class.
func nativeValue(t model.Trade, exponent int) float64 {
	var leg *decimal.Decimal
	switch {
	case t.OfferDenom == model.NativeDenom:
		leg = t.OfferAmountBase
	case t.AskDenom == model.NativeDenom:
		leg = t.AskAmountBase
	}
	if leg == nil {
		return 0
	}
	f, _ := model.ToDisplay(*leg, model.UzigExponent).Float64()
	return f
}
