package indexer

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/model"
	"github.com/degenter/indexer/pkg/notify"
	"github.com/degenter/indexer/pkg/parser"
	"github.com/degenter/indexer/pkg/registry"
)

func TestClassifyDenom(t *testing.T) {
	cases := map[string]model.TokenType{
		"uzig":                    model.TokenNative,
		"factory/zig1abc/mycoin":  model.TokenFactory,
		"ibc/ABCDEF0123456789":    model.TokenIBC,
		"zig1cw20contractaddress": model.TokenCW20,
	}
	for denom, want := range cases {
		if got := classifyDenom(denom); got != want {
			t.Errorf("classifyDenom(%q) = %q, want %q", denom, got, want)
		}
	}
}

func TestResolveReservesFallbackOrder(t *testing.T) {
	direct := parser.Event{Attrs: parser.EventAttrs{
		"reserve_asset1_denom":  "uzig",
		"reserve_asset1_amount": "1000",
		"reserve_asset2_denom":  "factory/x/coin",
		"reserve_asset2_amount": "2000",
		"reserves":              "999uzig, 888factory/x/coin",
	}}
	legs := resolveReserves(direct)
	if legs[0].Denom != "uzig" || *legs[0].Amount != "1000" {
		t.Fatalf("expected direct attrs to win, got %+v", legs[0])
	}

	kvOnly := parser.Event{Attrs: parser.EventAttrs{"reserves": "500uzig, 600factory/x/coin"}}
	legs = resolveReserves(kvOnly)
	if legs[0].Denom != "uzig" || *legs[0].Amount != "500" {
		t.Fatalf("expected reserves kv fallback, got %+v", legs[0])
	}

	empty := parser.Event{Attrs: parser.EventAttrs{}}
	legs = resolveReserves(empty)
	if legs[0].Amount != nil || legs[1].Amount != nil {
		t.Fatalf("expected nil legs with no attributes, got %+v", legs)
	}
}

type fakeDexStore struct {
	dexCalls []string
}

func (f *fakeDexStore) EnsureUnknownDEX(ctx context.Context) (int64, error) { return 1, nil }
func (f *fakeDexStore) EnsureDEX(ctx context.Context, name, factoryContract, routerContract string) (int64, error) {
	f.dexCalls = append(f.dexCalls, name)
	return 2, nil
}
func (f *fakeDexStore) UpsertPool(ctx context.Context, p model.Pool) (int64, error) { return 0, nil }
func (f *fakeDexStore) PoolByPairContract(ctx context.Context, pairContract string) (*model.Pool, error) {
	return nil, nil
}

func TestResolveDEXMatchesConfiguredFactory(t *testing.T) {
	store := &fakeDexStore{}
	pools, err := registry.NewPoolRegistry(store, notify.New(), 16)
	if err != nil {
		t.Fatal(err)
	}
	p := &Processor{pools: pools, router: "zig1router", factory: "zig1factory", dexName: "ZigSwap"}

	id, err := p.resolveDEX(context.Background(), "zig1factory")
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Fatalf("expected configured dex id 2, got %d", id)
	}
	if len(store.dexCalls) != 1 || store.dexCalls[0] != "ZigSwap" {
		t.Fatalf("expected one EnsureDEX(ZigSwap) call, got %v", store.dexCalls)
	}

	if _, err := p.resolveDEX(context.Background(), "zig1someotherfactory"); err == nil {
		t.Fatal("expected error for unmatched factory so caller falls back to UnknownDEX")
	}
}

func TestMatchLegs(t *testing.T) {
	pool := model.Pool{BaseDenom: "factory/x/coin", QuoteDenom: "uzig"}
	baseAmt := decimal.NewFromInt(100)
	quoteAmt := decimal.NewFromInt(500)

	trade := model.Trade{
		ReserveLeg1Denom: "uzig", ReserveLeg1Amt: &quoteAmt,
		ReserveLeg2Denom: "factory/x/coin", ReserveLeg2Amt: &baseAmt,
	}
	base, quote := matchLegs(pool, trade)
	if !base.Equal(baseAmt) || !quote.Equal(quoteAmt) {
		t.Fatalf("matchLegs mismatched legs to base/quote: base=%s quote=%s", base, quote)
	}

	tradeSwapped := model.Trade{
		ReserveLeg1Denom: "factory/x/coin", ReserveLeg1Amt: &baseAmt,
		ReserveLeg2Denom: "uzig", ReserveLeg2Amt: &quoteAmt,
	}
	base, quote = matchLegs(pool, tradeSwapped)
	if !base.Equal(baseAmt) || !quote.Equal(quoteAmt) {
		t.Fatalf("matchLegs failed on swapped leg order: base=%s quote=%s", base, quote)
	}
}
