package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/model"
)

type fakeTrades struct {
	batches [][]model.Trade
	calls   int
}

func (f *fakeTrades) TradesSince(ctx context.Context, watermark time.Time, limit int) ([]model.Trade, error) {
	defer func() { f.calls++ }()
	if f.calls >= len(f.batches) {
		return nil, nil
	}
	return f.batches[f.calls], nil
}

type fakeLookup struct {
	tokens map[int64]*model.Token
	pools  map[int64]*model.Pool
}

type notFoundErr string

func (e notFoundErr) Error() string { return string(e) }

func (f *fakeLookup) TokenByID(ctx context.Context, id int64) (*model.Token, error) {
	tok, ok := f.tokens[id]
	if !ok {
		return nil, notFoundErr("token not found")
	}
	return tok, nil
}

func (f *fakeLookup) PoolByID(ctx context.Context, id int64) (*model.Pool, error) {
	pool, ok := f.pools[id]
	if !ok {
		return nil, notFoundErr("pool not found")
	}
	return pool, nil
}

type fakePublisher struct {
	frames map[string][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{frames: map[string][][]byte{}}
}

func (f *fakePublisher) Publish(topic string, frame []byte) {
	f.frames[topic] = append(f.frames[topic], frame)
}

func symbolPtr(s string) *string { return &s }

func TestTickPublishesToAllTopics(t *testing.T) {
	offer := decimal.NewFromInt(1000000)
	ask := decimal.NewFromInt(42)
	trade := model.Trade{
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TxHash:          "ABC123",
		PoolID:          1,
		Action:          model.ActionSwap,
		Direction:       model.DirBuy,
		OfferDenom:      model.NativeDenom,
		OfferAmountBase: &offer,
		AskDenom:        "factory/contract/xyz",
		AskAmountBase:   &ask,
		Signer:          "zig1abc",
	}

	lookup := &fakeLookup{
		tokens: map[int64]*model.Token{
			10: {ID: 10, Denom: "factory/contract/xyz", Symbol: symbolPtr("XYZ"), Exponent: 6},
		},
		pools: map[int64]*model.Pool{
			1: {ID: 1, PairContract: "zig1pair", BaseTokenID: 10},
		},
	}
	trades := &fakeTrades{batches: [][]model.Trade{{trade}}}
	pub := newFakePublisher()

	p := NewPump(trades, lookup, pub, nil)
	if err := p.tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, topic := range []string{
		"trades.stream",
		"trades.stream.token:XYZ",
		"trades.stream.token:10",
		"trades.stream.token:factory/contract/xyz",
		"trades.stream.pair:zig1pair",
	} {
		if len(pub.frames[topic]) != 1 {
			t.Errorf("expected one frame on topic %q, got %d", topic, len(pub.frames[topic]))
		}
	}

	var frame TradeFrame
	if err := json.Unmarshal(pub.frames["trades.stream"][0], &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != "trade" || frame.Data.TxHash != "ABC123" {
		t.Fatalf("unexpected frame contents: %+v", frame)
	}
	if frame.Data.ValueNative != 1 {
		t.Errorf("expected native value 1 (1000000 uzig at exponent 6), got %v", frame.Data.ValueNative)
	}

	if !p.watermark.Equal(trade.CreatedAt) {
		t.Errorf("watermark not advanced: got %v want %v", p.watermark, trade.CreatedAt)
	}
}

func TestTickBroadcastsNonSwapActionsWithZeroValue(t *testing.T) {
	trade := model.Trade{
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TxHash:     "PROVIDE1",
		PoolID:     1,
		Action:     model.ActionProvide,
		Direction:  model.DirProvide,
		OfferDenom: "factory/contract/xyz",
	}
	lookup := &fakeLookup{
		tokens: map[int64]*model.Token{10: {ID: 10, Denom: "factory/contract/xyz", Exponent: 6}},
		pools:  map[int64]*model.Pool{1: {ID: 1, PairContract: "zig1pair", BaseTokenID: 10}},
	}
	trades := &fakeTrades{batches: [][]model.Trade{{trade}}}
	pub := newFakePublisher()

	p := NewPump(trades, lookup, pub, nil)
	if err := p.tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.frames["trades.stream"]) != 1 {
		t.Fatalf("expected a provide action to still be broadcast, got %d frames", len(pub.frames["trades.stream"]))
	}
	var frame TradeFrame
	if err := json.Unmarshal(pub.frames["trades.stream"][0], &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Data.ValueNative != 0 {
		t.Errorf("expected valueNative 0 for a non-native-leg provide, got %v", frame.Data.ValueNative)
	}
	if !p.watermark.Equal(trade.CreatedAt) {
		t.Error("watermark should advance")
	}
}

func TestTickSkipsUnresolvablePool(t *testing.T) {
	trade := model.Trade{CreatedAt: time.Now(), PoolID: 99}
	lookup := &fakeLookup{tokens: map[int64]*model.Token{}, pools: map[int64]*model.Pool{}}
	trades := &fakeTrades{batches: [][]model.Trade{{trade}}}
	pub := newFakePublisher()

	p := NewPump(trades, lookup, pub, nil)
	if err := p.tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.frames) != 0 {
		t.Errorf("expected no frames published for unresolvable pool, got %d topics", len(pub.frames))
	}
}
