// Package tradesink is the Trade Sink: a Batch Queue specialization that
// coalesces trade inserts and derives each trade's size class before it
// ever reaches Postgres.
package tradesink

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/batchqueue"
	"github.com/degenter/indexer/pkg/model"
	"github.com/degenter/indexer/pkg/util"
)

// Store is the subset of *db.DB the Trade Sink writes through.
type Store interface {
	// InsertTrades returns one id per input trade, in the same order;
	// an id of 0 means that trade hit ON CONFLICT DO NOTHING (already
	// inserted by a prior flush).
	InsertTrades(ctx context.Context, trades []model.Trade) ([]int64, error)
	InsertLargeTrade(ctx context.Context, tradeID int64, bucket model.Bucket, valueZig decimal.Decimal) error
}

// Sink batches model.Trade rows and flushes them as one parameterized
// INSERT ... ON CONFLICT DO NOTHING statement.
type Sink struct {
	queue *batchqueue.Queue[model.Trade]
}

// New builds a Trade Sink over store, coalescing up to maxItems trades or
// maxWait, whichever comes first. clock drives the batch queue's flush
// timer; nil means real time.
func New(ctx context.Context, store Store, maxItems int, maxWait time.Duration, clock util.Clock) *Sink {
	q := batchqueue.New(maxItems, maxWait, func(batch []model.Trade) error {
		ids, err := store.InsertTrades(ctx, batch)
		if err != nil {
			return fmt.Errorf("flush trade batch of %d: %w", len(batch), err)
		}
		if err := insertWhaleTrades(ctx, store, batch, ids); err != nil {
			return fmt.Errorf("flush large trades for batch of %d: %w", len(batch), err)
		}
		return nil
	}, clock)
	return &Sink{queue: q}
}

// insertWhaleTrades records every newly-inserted whale-class trade into
// large_trades, once per rollup bucket window the matrix tables roll up
// over. The trade row has already landed by the time this runs, so a
// failure here is reported through Errors() but never retried.
func insertWhaleTrades(ctx context.Context, store Store, batch []model.Trade, ids []int64) error {
	var firstErr error
	for i, t := range batch {
		if i >= len(ids) || ids[i] == 0 {
			continue
		}
		if t.SizeClass == nil || *t.SizeClass != model.SizeWhale || t.ValueZig == nil {
			continue
		}
		for _, bucket := range model.AllBuckets {
			if err := store.InsertLargeTrade(ctx, ids[i], bucket, *t.ValueZig); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Enqueue derives the trade's size class from its native-quote leg (when
// native-quote is a party to the trade) and queues it for batch insert.
func (s *Sink) Enqueue(t model.Trade, nativeLegAmountBase *decimal.Decimal, nativeExponent int) {
	if nativeLegAmountBase != nil {
		z := model.ToDisplay(*nativeLegAmountBase, nativeExponent)
		class := model.ClassifySize(z)
		t.SizeClass = &class
		t.ValueZig = &z
	}
	s.queue.Add(t)
}

// Errors surfaces batch flush failures.
func (s *Sink) Errors() <-chan error {
	return s.queue.Errors()
}

// Close flushes any remaining trades and stops the background ticker.
func (s *Sink) Close() {
	s.queue.Close()
}
