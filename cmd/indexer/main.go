package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/degenter/indexer/params"
	"github.com/degenter/indexer/pkg/broadcast"
	"github.com/degenter/indexer/pkg/chain"
	"github.com/degenter/indexer/pkg/db"
	"github.com/degenter/indexer/pkg/fasttrack"
	"github.com/degenter/indexer/pkg/indexer"
	"github.com/degenter/indexer/pkg/notify"
	"github.com/degenter/indexer/pkg/ohlcv"
	"github.com/degenter/indexer/pkg/priceengine"
	"github.com/degenter/indexer/pkg/registry"
	"github.com/degenter/indexer/pkg/tradesink"
	"github.com/degenter/indexer/pkg/util"
	"github.com/degenter/indexer/pkg/wsserver"
)

const registryCacheSize = 4096

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("logger_initialized", zap.String("log_file", cfg.LogFile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("db_open_failed", zap.Error(err))
	}
	defer store.Close()

	rpc := chain.NewRPCClient(cfg.Chain.RPCBaseURL)
	lcd := chain.NewLCDClient(cfg.Chain.LCDBaseURL)
	bus := notify.New()

	tokens, err := registry.NewTokenRegistry(store, lcd, registryCacheSize)
	if err != nil {
		logger.Fatal("token_registry_init_failed", zap.Error(err))
	}
	pools, err := registry.NewPoolRegistry(store, bus, registryCacheSize)
	if err != nil {
		logger.Fatal("pool_registry_init_failed", zap.Error(err))
	}

	prices := priceengine.New(store, lcd)
	bars := ohlcv.New(store)
	sink := tradesink.New(ctx, store, cfg.TradesBatch.MaxItems, cfg.TradesBatch.Wait(), nil)
	defer sink.Close()

	go func() {
		for err := range sink.Errors() {
			logger.Warn("trade_sink_flush_failed", zap.Error(err))
		}
	}()

	rollup := fasttrack.NewRollup(store)
	reactor := fasttrack.New(bus, tokens, pools, prices, bars, lcd, rollup, logger)
	stopReactor := reactor.Start()
	defer stopReactor()

	proc := indexer.New(rpc, pools, tokens, prices, bars, sink, store, cfg.Chain.RouterAddr, cfg.Chain.FactoryAddr, cfg.Chain.DexName, cfg.BlockProc.Concurrency, cfg.BlockProc.MaxTasks, logger)

	hub := wsserver.NewHub(logger)
	pump := broadcast.NewPump(store, store, hub, logger)
	go pump.Run(ctx)

	wsSrv := wsserver.NewServer(hub, []string{"*"}, logger)
	go func() {
		if err := wsSrv.Start(cfg.WS.ListenAddr); err != nil {
			logger.Fatal("ws_server_failed", zap.Error(err))
		}
	}()

	logger.Info("indexer_starting",
		zap.String("rpc", cfg.Chain.RPCBaseURL),
		zap.String("lcd", cfg.Chain.LCDBaseURL),
		zap.Int64("start_height", cfg.Chain.StartHeight))

	go runBlockLoop(ctx, proc, store, rpc, cfg.Chain.StartHeight, logger)
	if cfg.Meta.Backfill {
		go runMetaBackfillLoop(ctx, tokens, store, cfg.Meta, logger)
	}

	<-ctx.Done()
	logger.Info("indexer_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ws_server_shutdown_failed", zap.Error(err))
	}
}

// runBlockLoop advances height-by-height from the persisted watermark (or
// startHeight on a cold start), waiting for chain tip to catch up between
// heights rather than polling a fixed interval.
func runBlockLoop(ctx context.Context, proc *indexer.Processor, state *db.DB, rpc *chain.RPCClient, startHeight int64, log *zap.Logger) {
	height, err := state.LastHeight(ctx)
	if err != nil {
		log.Fatal("last_height_lookup_failed", zap.Error(err))
	}
	if height == 0 {
		height = startHeight
	} else {
		height++
	}

	const idleWait = 1 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tip, err := rpc.Status(ctx)
		if err != nil {
			log.Warn("rpc_status_failed", zap.Error(err))
			sleepOrDone(ctx, idleWait)
			continue
		}
		if height > tip {
			sleepOrDone(ctx, idleWait)
			continue
		}

		if err := proc.ProcessHeight(ctx, height); err != nil {
			log.Warn("process_height_failed", zap.Int64("height", height), zap.Error(err))
			sleepOrDone(ctx, idleWait)
			continue
		}
		height++
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// runMetaBackfillLoop periodically sweeps tokens whose metadata was never
// populated (a denom seen before the registry existed, or whose Fast-Track
// enrichment call failed) and refreshes a bounded batch each cycle.
func runMetaBackfillLoop(ctx context.Context, tokens *registry.TokenRegistry, store *db.DB, cfg params.Meta, log *zap.Logger) {
	ticker := time.NewTicker(time.Duration(cfg.RefreshSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary := tokens.BackfillOnce(ctx, store, cfg.BackfillBatch, cfg.Concurrency)
			if summary.Failures > 0 {
				log.Warn("meta_backfill_partial_failure", zap.Int("failures", summary.Failures))
			}
			sleepOrDone(ctx, time.Duration(cfg.BackfillSleepMs)*time.Millisecond)
		}
	}
}
