// Package indexer is the Block Processor: the per-height orchestrator that
// turns one block's wasm events into pool/trade/price/OHLCV writes.
package indexer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/degenter/indexer/pkg/chain"
	"github.com/degenter/indexer/pkg/model"
	"github.com/degenter/indexer/pkg/ohlcv"
	"github.com/degenter/indexer/pkg/parser"
	"github.com/degenter/indexer/pkg/priceengine"
	"github.com/degenter/indexer/pkg/registry"
	"github.com/degenter/indexer/pkg/scheduler"
	"github.com/degenter/indexer/pkg/tradesink"
)

// IndexStateStore is the subset of *db.DB the processor needs for its
// high-water mark.
type IndexStateStore interface {
	SetLastHeight(ctx context.Context, height int64) error
}

// Processor orchestrates fetch -> scan -> phase-1 -> prefetch -> phase-2 ->
// low-prio -> advance-watermark for one height at a time.
type Processor struct {
	rpc       *chain.RPCClient
	pools     *registry.PoolRegistry
	tokens    *registry.TokenRegistry
	prices    *priceengine.Engine
	bars      *ohlcv.Aggregator
	sink      *tradesink.Sink
	state     IndexStateStore
	router    string
	factory   string
	dexName   string
	concurrency int
	maxPending  int
	log       *zap.Logger
}

func New(rpc *chain.RPCClient, pools *registry.PoolRegistry, tokens *registry.TokenRegistry, prices *priceengine.Engine, bars *ohlcv.Aggregator, sink *tradesink.Sink, state IndexStateStore, routerAddr, factoryAddr, dexName string, concurrency, maxPending int, log *zap.Logger) *Processor {
	return &Processor{
		rpc: rpc, pools: pools, tokens: tokens, prices: prices, bars: bars,
		sink: sink, state: state, router: routerAddr, factory: factoryAddr, dexName: dexName,
		concurrency: concurrency, maxPending: maxPending, log: log,
	}
}

// poolUpsertTask is a phase-1 unit of work: one create_pair event.
type poolUpsertTask struct {
	pool model.Pool
}

// tradeTask is a phase-2 unit of work: one swap/provide/withdraw event.
type tradeTask struct {
	trade        model.Trade
	pairContract string
	isSwap       bool
}

// ProcessHeight runs every stage for one height and advances the
// high-water mark only on full success, so a fatal mid-height error
// leaves the next run to reprocess the same height.
func (p *Processor) ProcessHeight(ctx context.Context, height int64) error {
	block, results, err := p.fetchHeight(ctx, height)
	if err != nil {
		return fmt.Errorf("fetch height %d: %w", height, err)
	}

	poolTasks, tradeTasks, newDenoms, err := p.scan(ctx, block, results, height)
	if err != nil {
		return fmt.Errorf("scan height %d: %w", height, err)
	}

	// Phase 1: pool upserts, fully drained before phase 2 starts.
	phase1 := make([]scheduler.Task, len(poolTasks))
	for i, pt := range poolTasks {
		pt := pt
		phase1[i] = func(ctx context.Context) error {
			_, err := p.pools.UpsertPool(ctx, pt.pool)
			return err
		}
	}
	if sum := scheduler.RunWithConcurrency(ctx, phase1, p.concurrency, fmt.Sprintf("h%d.pool", height), p.log); sum.Failures > 0 {
		return fmt.Errorf("height %d: %d of %d pool upserts failed", height, sum.Failures, len(phase1))
	}

	// Prefetch every pair_contract phase-2 needs so readers see a
	// consistent cache snapshot once phase-1 has drained.
	pairContracts := make([]string, 0, len(tradeTasks))
	seenPC := make(map[string]bool, len(tradeTasks))
	for _, tt := range tradeTasks {
		if !seenPC[tt.pairContract] {
			seenPC[tt.pairContract] = true
			pairContracts = append(pairContracts, tt.pairContract)
		}
	}
	if err := p.pools.Prefetch(ctx, pairContracts); err != nil {
		return fmt.Errorf("prefetch pools height %d: %w", height, err)
	}

	// Phase 2: trades/prices/OHLCV, bounded concurrency, with backpressure
	// flush if the scan produced more than maxPending tasks.
	tradeFailures := 0
	for start := 0; start < len(tradeTasks); start += p.maxPending {
		end := start + p.maxPending
		if end > len(tradeTasks) {
			end = len(tradeTasks)
		}
		chunk := tradeTasks[start:end]
		phase2 := make([]scheduler.Task, len(chunk))
		for i, tt := range chunk {
			tt := tt
			phase2[i] = func(ctx context.Context) error {
				return p.processTrade(ctx, tt)
			}
		}
		tradeFailures += scheduler.RunWithConcurrency(ctx, phase2, p.concurrency, fmt.Sprintf("h%d.trade", height), p.log).Failures
	}
	if tradeFailures > 0 {
		return fmt.Errorf("height %d: %d of %d trade tasks failed", height, tradeFailures, len(tradeTasks))
	}

	// Low-priority: first-sighting token metadata fetches, smaller
	// concurrency cap since these are non-blocking enrichment.
	lowPrio := make([]scheduler.Task, len(newDenoms))
	for i, d := range newDenoms {
		d := d
		lowPrio[i] = func(ctx context.Context) error {
			return p.tokens.SetTokenMetaFromLCD(ctx, d.id, d.denom, d.typ)
		}
	}
	lowConcurrency := p.concurrency / 3
	if lowConcurrency < 1 {
		lowConcurrency = 1
	}
	scheduler.RunWithConcurrency(ctx, lowPrio, lowConcurrency, fmt.Sprintf("h%d.meta", height), p.log)

	return p.state.SetLastHeight(ctx, height)
}

func (p *Processor) fetchHeight(ctx context.Context, height int64) (*chain.BlockResponse, *chain.BlockResultsResponse, error) {
	var block *chain.BlockResponse
	var results *chain.BlockResultsResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := p.rpc.Block(gctx, height)
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	g.Go(func() error {
		r, err := p.rpc.BlockResults(gctx, height)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return block, results, nil
}

type newDenom struct {
	id    int64
	denom string
	typ   model.TokenType
}

// scan groups each tx's wasm events by action into phase-1 (create_pair),
// phase-2 (swap/provide/withdraw), and low-priority (first-time token
// metadata) task lists.
func (p *Processor) scan(ctx context.Context, block *chain.BlockResponse, results *chain.BlockResultsResponse, height int64) ([]poolUpsertTask, []tradeTask, []newDenom, error) {
	var poolTasks []poolUpsertTask
	var tradeTasks []tradeTask
	var newDenoms []newDenom

	createdAt, err := time.Parse(time.RFC3339Nano, block.Result.Block.Header.Time)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	for txIdx, txResult := range results.Result.TxsResults {
		events := make([]parser.Event, len(txResult.Events))
		for i, e := range txResult.Events {
			events[i] = parser.Event{Type: e.Type, Attrs: chain.Flatten(e.Attributes)}
		}

		txBytes, _ := chain.DecodeTx(blockTxAt(block, txIdx))
		txHash := parser.Sha256Hex(txBytes)

		for _, ev := range parser.WasmByAction(events, "create_pair") {
			pt, denoms := p.buildPoolUpsertTask(ctx, ev, txHash, height)
			poolTasks = append(poolTasks, pt)
			for _, nd := range denoms {
				if p.tokens.IsFirstSighting(nd.denom) {
					newDenoms = append(newDenoms, nd)
				}
			}
		}

		for _, ev := range parser.WasmByAction(events, "swap") {
			tt, denoms := p.buildTradeTask(ctx, ev, model.ActionSwap, txHash, height, createdAt)
			tradeTasks = append(tradeTasks, tt)
			for _, nd := range denoms {
				if p.tokens.IsFirstSighting(nd.denom) {
					newDenoms = append(newDenoms, nd)
				}
			}
		}
		for _, ev := range parser.WasmByAction(events, "provide_liquidity") {
			tt, _ := p.buildTradeTask(ctx, ev, model.ActionProvide, txHash, height, createdAt)
			tradeTasks = append(tradeTasks, tt)
		}
		for _, ev := range parser.WasmByAction(events, "withdraw_liquidity") {
			tt, _ := p.buildTradeTask(ctx, ev, model.ActionWithdraw, txHash, height, createdAt)
			tradeTasks = append(tradeTasks, tt)
		}
	}

	return poolTasks, tradeTasks, newDenoms, nil
}

func blockTxAt(block *chain.BlockResponse, idx int) string {
	if idx < 0 || idx >= len(block.Result.Block.Data.Txs) {
		return ""
	}
	return block.Result.Block.Data.Txs[idx]
}

func (p *Processor) buildPoolUpsertTask(ctx context.Context, ev parser.Event, txHash string, height int64) (poolUpsertTask, []newDenom) {
	pairRaw, _ := ev.Attrs.Get("pair")
	pair := parser.NormalizePair(pairRaw)
	pairContract, _ := ev.Attrs.Get("pair_contract_addr")
	factory, _ := ev.Attrs.Get("factory_contract_addr")
	creator, _ := ev.Attrs.Get("sender")

	baseTyp := classifyDenom(pair.Base)
	quoteTyp := classifyDenom(pair.Quote)
	baseID, _ := p.tokens.UpsertTokenMinimal(ctx, pair.Base, baseTyp)
	quoteID, _ := p.tokens.UpsertTokenMinimal(ctx, pair.Quote, quoteTyp)

	dexID, err := p.resolveDEX(ctx, factory)
	if err != nil {
		dexID, _ = p.pools.EnsureUnknownDEX(ctx)
	}

	pool := model.Pool{
		PairContract: pairContract,
		DexID:        dexID,
		BaseTokenID:  baseID,
		QuoteTokenID: quoteID,
		BaseDenom:    pair.Base,
		QuoteDenom:   pair.Quote,
		PairType:     model.PairXYK,
		IsUzigQuote:  pair.Quote == model.NativeDenom,
		Creator:      creator,
		CreateTxHash: txHash,
		CreateHeight: height,
	}
	return poolUpsertTask{pool: pool}, []newDenom{{baseID, pair.Base, baseTyp}, {quoteID, pair.Quote, quoteTyp}}
}

// resolveDEX maps a create_pair event's factory_contract_addr to a
// dex_catalogue row: the configured, named DEX if it matches the
// observed factory, the synthetic UnknownDEX otherwise.
func (p *Processor) resolveDEX(ctx context.Context, factory string) (int64, error) {
	if p.factory == "" || factory != p.factory {
		return 0, fmt.Errorf("factory %q does not match configured dex", factory)
	}
	return p.pools.EnsureDEX(ctx, p.dexName, factory, p.router)
}

func classifyDenom(denom string) model.TokenType {
	switch {
	case denom == model.NativeDenom:
		return model.TokenNative
	case len(denom) > 7 && denom[:7] == "factory":
		return model.TokenFactory
	case len(denom) > 4 && denom[:4] == "ibc/":
		return model.TokenIBC
	default:
		return model.TokenCW20
	}
}

func (p *Processor) buildTradeTask(ctx context.Context, ev parser.Event, action model.Action, txHash string, height int64, createdAt time.Time) (tradeTask, []newDenom) {
	pairContract, _ := ev.Attrs.Get("pair_contract_addr")
	msgIndexStr, _ := ev.Attrs.Get("msg_index")
	msgIndex, _ := strconv.Atoi(msgIndexStr)
	sender, _ := ev.Attrs.Get("sender")

	offerDenom, _ := ev.Attrs.Get("offer_denom")
	askDenom, _ := ev.Attrs.Get("ask_denom")
	offerAmt := parseAmount(ev, "offer_amount")
	askAmt := parseAmount(ev, "return_amount")
	returnAmt := parseAmount(ev, "return_amount")

	legs := resolveReserves(ev)

	t := model.Trade{
		CreatedAt:        createdAt,
		TxHash:           txHash,
		MsgIndex:         msgIndex,
		Action:           action,
		OfferDenom:       offerDenom,
		OfferAmountBase:  offerAmt,
		AskDenom:         askDenom,
		AskAmountBase:    askAmt,
		ReturnAmountBase: returnAmt,
		Height:           height,
		Signer:           sender,
		IsRouter:         p.isRouter(ev, sender),
	}
	if legs[0].Amount != nil {
		t.ReserveLeg1Denom = legs[0].Denom
		t.ReserveLeg1Amt = parseDecimal(*legs[0].Amount)
	}
	if legs[1].Amount != nil {
		t.ReserveLeg2Denom = legs[1].Denom
		t.ReserveLeg2Amt = parseDecimal(*legs[1].Amount)
	}

	switch action {
	case model.ActionProvide:
		t.Direction = model.DirProvide
	case model.ActionWithdraw:
		t.Direction = model.DirWithdraw
	}

	var newDenoms []newDenom
	if offerDenom != "" {
		typ := classifyDenom(offerDenom)
		if id, err := p.tokens.UpsertTokenMinimal(ctx, offerDenom, typ); err == nil {
			newDenoms = append(newDenoms, newDenom{id, offerDenom, typ})
		}
	}
	return tradeTask{trade: t, pairContract: pairContract, isSwap: action == model.ActionSwap}, newDenoms
}

// isRouter reports whether the swap's sender is the configured router
// address. A companion execute-event check (same msg_index targeting the
// router) is left to callers with access to the tx's full event list; this
// covers the direct-sender half of the spec's OR condition.
func (p *Processor) isRouter(ev parser.Event, sender string) bool {
	return p.router != "" && sender == p.router
}

func parseAmount(ev parser.Event, key string) *decimal.Decimal {
	raw, ok := ev.Attrs.Get(key)
	if !ok {
		return nil
	}
	if parser.DigitsOrNull(raw) == nil {
		return nil
	}
	return parseDecimal(raw)
}

func parseDecimal(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// resolveReserves applies the documented fallback order: direct attributes,
// then the structured "reserves"/"assets"/"refund_assets" attribute.
func resolveReserves(ev parser.Event) [2]parser.Leg {
	if d1, ok1 := ev.Attrs.Get("reserve_asset1_denom"); ok1 {
		a1, _ := ev.Attrs.Get("reserve_asset1_amount")
		d2, _ := ev.Attrs.Get("reserve_asset2_denom")
		a2, _ := ev.Attrs.Get("reserve_asset2_amount")
		return [2]parser.Leg{{Denom: d1, Amount: nonEmpty(a1)}, {Denom: d2, Amount: nonEmpty(a2)}}
	}
	if raw, ok := ev.Attrs.Get("reserves"); ok {
		return parser.ParseReservesKV(raw)
	}
	if raw, ok := ev.Attrs.Get("assets"); ok {
		return parser.ParseAssetsList(raw)
	}
	if raw, ok := ev.Attrs.Get("refund_assets"); ok {
		return parser.ParseAssetsList(raw)
	}
	return [2]parser.Leg{}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// processTrade resolves the trade's pool, classifies direction, seeds pool
// state/price/OHLCV for native-quote swaps, and queues the trade insert.
func (p *Processor) processTrade(ctx context.Context, tt tradeTask) error {
	pool, ok, err := p.pools.PoolWithTokens(ctx, tt.pairContract)
	if err != nil {
		return fmt.Errorf("resolve pool %s: %w", tt.pairContract, err)
	}
	if !ok {
		return fmt.Errorf("unresolved pool %s", tt.pairContract)
	}
	t := tt.trade
	t.PoolID = pool.ID

	if t.Action == model.ActionSwap {
		switch {
		case t.OfferDenom == pool.QuoteDenom:
			t.Direction = model.DirBuy
		case t.OfferDenom == pool.BaseDenom:
			t.Direction = model.DirSell
		default:
			if t.AskDenom == pool.QuoteDenom {
				t.Direction = model.DirSell
			} else {
				t.Direction = model.DirBuy
			}
		}
	}

	var nativeLeg *decimal.Decimal
	if t.OfferDenom == model.NativeDenom {
		nativeLeg = t.OfferAmountBase
	} else if t.AskDenom == model.NativeDenom {
		nativeLeg = t.AskAmountBase
	}
	p.sink.Enqueue(t, nativeLeg, model.UzigExponent)

	if t.Action == model.ActionSwap && t.ReserveLeg1Amt != nil && t.ReserveLeg2Amt != nil {
		baseAmt, quoteAmt := matchLegs(pool, t)
		if err := p.prices.UpsertPoolState(ctx, pool, baseAmt, quoteAmt); err != nil {
			return fmt.Errorf("upsert pool_state %d: %w", pool.ID, err)
		}
		if pool.IsUzigQuote {
			baseExponent := model.UzigExponent
			if base, err := p.tokens.TokenByID(ctx, pool.BaseTokenID); err == nil && base != nil {
				baseExponent = base.Exponent
			}
			baseDisplay := model.ToDisplay(baseAmt, baseExponent)
			quoteDisplay := model.ToDisplay(quoteAmt, model.UzigExponent)
			price := priceengine.PriceFromReserves(baseDisplay, quoteDisplay)
			if !price.IsZero() {
				if err := p.prices.UpsertPrice(ctx, pool.BaseTokenID, pool.ID, price, true, t.CreatedAt); err != nil {
					return fmt.Errorf("upsert price pool %d: %w", pool.ID, err)
				}
				if nativeLeg != nil {
					volZig := model.ToDisplay(*nativeLeg, model.UzigExponent)
					if err := p.bars.Observe(ctx, pool.ID, t.CreatedAt, price, volZig); err != nil {
						return fmt.Errorf("observe ohlcv pool %d: %w", pool.ID, err)
					}
				}
			}
		}
	}
	return nil
}

func matchLegs(pool model.Pool, t model.Trade) (base, quote decimal.Decimal) {
	switch {
	case t.ReserveLeg1Denom == pool.BaseDenom:
		return *t.ReserveLeg1Amt, *t.ReserveLeg2Amt
	case t.ReserveLeg2Denom == pool.BaseDenom:
		return *t.ReserveLeg2Amt, *t.ReserveLeg1Amt
	default:
		return decimal.Zero, decimal.Zero
	}
}
