package registry

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/degenter/indexer/pkg/model"
	"github.com/degenter/indexer/pkg/notify"
)

type fakeTokenStore struct {
	nextID int64
	byDenom map[string]int64
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{byDenom: make(map[string]int64)}
}

func (f *fakeTokenStore) UpsertTokenMinimal(ctx context.Context, denom string, typ model.TokenType) (int64, error) {
	if id, ok := f.byDenom[denom]; ok {
		return id, nil
	}
	f.nextID++
	f.byDenom[denom] = f.nextID
	return f.nextID, nil
}

func (f *fakeTokenStore) SetTokenMetaFromLCD(ctx context.Context, tokenID int64, name, symbol, display *string, exponent int, supply *decimal.Decimal, socials map[string]string) error {
	return nil
}

func (f *fakeTokenStore) TokenByID(ctx context.Context, id int64) (*model.Token, error) {
	return &model.Token{ID: id}, nil
}

func (f *fakeTokenStore) TokenByDenom(ctx context.Context, denom string) (*model.Token, error) {
	id := f.byDenom[denom]
	return &model.Token{ID: id, Denom: denom}, nil
}

func (f *fakeTokenStore) SetHolderCount(ctx context.Context, tokenID int64, count int64) error {
	return nil
}

func TestTokenRegistryCachesAfterFirstUpsert(t *testing.T) {
	store := newFakeTokenStore()
	reg, err := NewTokenRegistry(store, nil, 128)
	if err != nil {
		t.Fatal(err)
	}

	if !reg.IsFirstSighting("uzig") {
		t.Fatal("expected first sighting before any upsert")
	}
	id1, err := reg.UpsertTokenMinimal(context.Background(), "uzig", model.TokenNative)
	if err != nil {
		t.Fatal(err)
	}
	if reg.IsFirstSighting("uzig") {
		t.Fatal("expected cache hit after first upsert")
	}

	id2, err := reg.UpsertTokenMinimal(context.Background(), "uzig", model.TokenNative)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected stable id across repeated upserts, got %d then %d", id1, id2)
	}
	if store.nextID != 1 {
		t.Fatalf("expected exactly one underlying insert, store issued %d ids", store.nextID)
	}
}

type fakePoolStore struct {
	nextID      int64
	byContract  map[string]model.Pool
	unknownDEX  int64
}

func newFakePoolStore() *fakePoolStore {
	return &fakePoolStore{byContract: make(map[string]model.Pool)}
}

func (f *fakePoolStore) EnsureUnknownDEX(ctx context.Context) (int64, error) {
	if f.unknownDEX == 0 {
		f.unknownDEX = 1
	}
	return f.unknownDEX, nil
}

func (f *fakePoolStore) EnsureDEX(ctx context.Context, name, factoryContract, routerContract string) (int64, error) {
	return 2, nil
}

func (f *fakePoolStore) UpsertPool(ctx context.Context, p model.Pool) (int64, error) {
	if existing, ok := f.byContract[p.PairContract]; ok {
		return existing.ID, nil
	}
	f.nextID++
	p.ID = f.nextID
	f.byContract[p.PairContract] = p
	return p.ID, nil
}

func (f *fakePoolStore) PoolByPairContract(ctx context.Context, pairContract string) (*model.Pool, error) {
	p, ok := f.byContract[pairContract]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

var errNotFound = poolNotFoundErr("not found")

type poolNotFoundErr string

func (e poolNotFoundErr) Error() string { return string(e) }

type fakeBackfillStore struct {
	ids      []int64
	limitSeen int
}

func (f *fakeBackfillStore) TokensMissingMetadata(ctx context.Context, limit int) ([]int64, error) {
	f.limitSeen = limit
	return f.ids, nil
}

func TestBackfillOnceSkipsWhenNothingMissing(t *testing.T) {
	store := newFakeTokenStore()
	reg, err := NewTokenRegistry(store, nil, 128)
	if err != nil {
		t.Fatal(err)
	}

	backfill := &fakeBackfillStore{}
	summary := reg.BackfillOnce(context.Background(), backfill, 250, 4)
	if backfill.limitSeen != 250 {
		t.Fatalf("expected batch size 250 passed through, got %d", backfill.limitSeen)
	}
	if summary.Failures != 0 || len(summary.Spans) != 0 {
		t.Fatalf("expected an empty summary with nothing missing, got %+v", summary)
	}
}

func TestPoolRegistryPublishesOnlyOnce(t *testing.T) {
	store := newFakePoolStore()
	bus := notify.New()

	var deliveries int
	done := make(chan struct{}, 8)
	unsub := bus.Subscribe(model.TopicPairCreated, func(payload any) {
		deliveries++
		done <- struct{}{}
	})
	defer unsub()

	reg, err := NewPoolRegistry(store, bus, 128)
	if err != nil {
		t.Fatal(err)
	}

	p := model.Pool{PairContract: "zig1pair...", BaseDenom: "factory/x/a", QuoteDenom: "uzig", IsUzigQuote: true}
	if _, err := reg.UpsertPool(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.UpsertPool(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	<-done
	select {
	case <-done:
		t.Fatal("expected exactly one pair_created publish, got a second")
	default:
	}
	if deliveries != 1 {
		t.Fatalf("expected 1 delivery, got %d", deliveries)
	}
}
