// Copyright (c) 2025 BVK Chaitanya

package copier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bvk/copybot/gateway"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/ledger"
	"github.com/bvk/copybot/polymarket"
	"github.com/bvk/copybot/strategy"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeSource struct {
	mu     sync.Mutex
	trades []*polymarket.Trade
}

func (s *fakeSource) GetTrades(ctx context.Context, wallet string, limit int) ([]*polymarket.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades, nil
}

func (s *fakeSource) add(t *polymarket.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
}

type fakeMarkets struct{}

func (fakeMarkets) GetMarket(ctx context.Context, conditionID string) (*polymarket.Market, error) {
	return &polymarket.Market{
		ConditionID:  conditionID,
		Slug:         "market-" + conditionID,
		LiquidityUSD: decimal.NewFromInt(50000),
		Active:       true,
		TickSize:     decimal.RequireFromString("0.01"),
	}, nil
}

type fakeValues struct{}

func (fakeValues) GetPortfolioValue(ctx context.Context, wallet string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1000), nil
}

type fakeExchange struct {
	mu     sync.Mutex
	orders []*polymarket.OrderRequest
}

func (e *fakeExchange) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(10000), nil
}

func (e *fakeExchange) SubmitOrder(ctx context.Context, req *polymarket.OrderRequest) (*polymarket.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders = append(e.orders, req)
	return &polymarket.OrderResult{OrderID: "order-1", Status: "live"}, nil
}

func (e *fakeExchange) numOrders() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.orders)
}

func (e *fakeExchange) orderSize(i int) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders[i].Size
}

type fixture struct {
	db       kv.Database
	source   *fakeSource
	exchange *fakeExchange
	ledger   *ledger.Ledger
	gateway  *gateway.Gateway
	rt       *Runtime
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := kvmemdb.New()
	l := ledger.New(db)
	exchange := &fakeExchange{}
	g := gateway.New(db, l, exchange)
	t.Cleanup(func() { g.Close() })

	store := strategy.NewStore(db)
	s := strategy.Default()
	s.DryRun = false
	s.SizingMode = "FIXED"
	s.FixedAmountUSD = decimal.NewFromInt(10)
	s.MinShares = decimal.NewFromInt(1)
	s.MaxTradeAge = time.Hour
	if err := store.Set(context.Background(), s); err != nil {
		t.Fatal(err)
	}

	source := &fakeSource{}
	return &fixture{
		db:       db,
		source:   source,
		exchange: exchange,
		ledger:   l,
		gateway:  g,
		rt: &Runtime{
			Database:     db,
			Source:       source,
			Markets:      fakeMarkets{},
			Values:       fakeValues{},
			Ledger:       l,
			Strategy:     store,
			Gateway:      g,
			OwnWallet:    "0xself",
			PollInterval: 10 * time.Millisecond,
		},
	}
}

func makeTrade(id, market, side string, at time.Time) *polymarket.Trade {
	return &polymarket.Trade{
		ID:       id,
		Wallet:   "0xtarget",
		MarketID: market,
		TokenID:  "token-" + market,
		Side:     side,
		Size:     decimal.NewFromInt(100),
		Price:    decimal.RequireFromString("0.5"),
		Slug:     "market-" + market,
		Time:     at,
	}
}

// runUntil runs the copier until cond holds or the deadline passes.
func runUntil(t *testing.T, c *Copier, rt *Runtime, cond func(*gobs.CopierState) bool) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		c.Run(ctx, rt)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond(c.Status()) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-doneCh

	if !cond(c.Status()) {
		t.Fatalf("condition not reached; state %+v", c.Status())
	}
}

func TestCopyTrade(t *testing.T) {
	f := newFixture(t)
	c, err := New(uuid.New().String(), "0xtarget")
	if err != nil {
		t.Fatal(err)
	}

	f.source.add(makeTrade("t1", "m1", "BUY", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumCopied == 1 })

	if f.exchange.numOrders() != 1 {
		t.Fatalf("want 1 order, got %d", f.exchange.numOrders())
	}
	entry, err := f.ledger.Get(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != "BUY" {
		t.Fatalf("want BUY in ledger, got %q", entry.Direction)
	}
}

func TestDuplicateDirectionSkipped(t *testing.T) {
	f := newFixture(t)
	c, err := New(uuid.New().String(), "0xtarget")
	if err != nil {
		t.Fatal(err)
	}

	// A BUY was already taken on this market by another copier.
	if err := f.ledger.Record(context.Background(), "m1", "BUY", "0xother", "order-0"); err != nil {
		t.Fatal(err)
	}

	f.source.add(makeTrade("t1", "m1", "BUY", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumSkipped == 1 })

	if f.exchange.numOrders() != 0 {
		t.Fatalf("duplicate direction produced an order")
	}

	// A reversal on the same market goes through.
	f.source.add(makeTrade("t2", "m1", "SELL", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumCopied == 1 })

	entry, err := f.ledger.Get(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != "SELL" {
		t.Fatalf("want SELL after reversal, got %q", entry.Direction)
	}
}

func TestCursorSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uid := uuid.New().String()
	c, err := New(uid, "0xtarget")
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.WithReadWriter(ctx, f.db, c.Save); err != nil {
		t.Fatal(err)
	}

	f.source.add(makeTrade("t1", "m1", "BUY", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumCopied == 1 })

	// Reload from the database, as a restart would, and run again over the
	// same upstream data. Nothing is re-copied.
	var restored *Copier
	err = kv.WithReader(ctx, f.db, func(ctx context.Context, r kv.Reader) error {
		restored, err = Load(ctx, uid, r)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if restored.Status().NumCopied != 1 {
		t.Fatalf("restored state lost counters: %+v", restored.Status())
	}

	runUntil(t, restored, f.rt, func(s *gobs.CopierState) bool { return s.NumTrades == 1 })
	time.Sleep(50 * time.Millisecond)
	if f.exchange.numOrders() != 1 {
		t.Fatalf("restart re-copied a processed trade: %d orders", f.exchange.numOrders())
	}
}

func TestStrategyHotReload(t *testing.T) {
	f := newFixture(t)
	c, err := New(uuid.New().String(), "0xtarget")
	if err != nil {
		t.Fatal(err)
	}

	f.source.add(makeTrade("t1", "m1", "BUY", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumCopied == 1 })

	// Flip the sizing mode; the edit applies to the very next trade without
	// restarting the copier.
	s, err := f.rt.Strategy.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s.SizingMode = "RATIO"
	s.SizeRatio = decimal.RequireFromString("0.1")
	if err := f.rt.Strategy.Set(context.Background(), s); err != nil {
		t.Fatal(err)
	}

	f.source.add(makeTrade("t2", "m2", "BUY", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumCopied == 2 })

	if f.exchange.numOrders() != 2 {
		t.Fatalf("want 2 orders, got %d", f.exchange.numOrders())
	}
	// FIXED $10 at limit price 0.52.
	if want := "19.23"; f.exchange.orderSize(0).String() != want {
		t.Fatalf("want first size %s, got %s", want, f.exchange.orderSize(0))
	}
	// RATIO 0.1 of the $50 observed notional at 0.52.
	if want := "9.61"; f.exchange.orderSize(1).String() != want {
		t.Fatalf("want second size %s, got %s", want, f.exchange.orderSize(1))
	}

	// Exclusions hot-reload the same way.
	s, err = f.rt.Strategy.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s.ExcludedMarkets = []string{"market-m3"}
	if err := f.rt.Strategy.Set(context.Background(), s); err != nil {
		t.Fatal(err)
	}

	f.source.add(makeTrade("t3", "m3", "BUY", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumSkipped == 1 })

	if f.exchange.numOrders() != 2 {
		t.Fatalf("excluded market produced an order")
	}
}

func TestMaxOpenPositionsGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.rt.Strategy.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s.MaxOpenPositions = 2
	if err := f.rt.Strategy.Set(ctx, s); err != nil {
		t.Fatal(err)
	}

	// Two markets already hold a BUY direction.
	if err := f.ledger.Record(ctx, "m1", "BUY", "0xother", "order-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.Record(ctx, "m2", "BUY", "0xother", "order-2"); err != nil {
		t.Fatal(err)
	}

	c, err := New(uuid.New().String(), "0xtarget")
	if err != nil {
		t.Fatal(err)
	}

	// A buy on a third market is gated.
	f.source.add(makeTrade("t1", "m3", "BUY", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumSkipped == 1 })
	if f.exchange.numOrders() != 0 {
		t.Fatalf("buy passed the max-positions gate")
	}

	// A sell still goes through and frees the slot.
	f.source.add(makeTrade("t2", "m2", "SELL", time.Now()))
	runUntil(t, c, f.rt, func(s *gobs.CopierState) bool { return s.NumCopied == 1 })

	entry, err := f.ledger.Get(ctx, "m2")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != "SELL" {
		t.Fatalf("want SELL after close, got %q", entry.Direction)
	}
}

func TestLoadAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wallets := map[string]string{}
	for _, w := range []string{"0xaaa", "0xbbb", "0xccc"} {
		uid := uuid.New().String()
		c, err := New(uid, w)
		if err != nil {
			t.Fatal(err)
		}
		if err := kv.WithReadWriter(ctx, f.db, c.Save); err != nil {
			t.Fatal(err)
		}
		wallets[uid] = w
	}

	var loaded []*Copier
	err := kv.WithReader(ctx, f.db, func(ctx context.Context, r kv.Reader) error {
		var err error
		loaded, err = LoadAll(ctx, r)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 {
		t.Fatalf("want 3 copiers, got %d", len(loaded))
	}
	for _, c := range loaded {
		if wallets[c.UID()] != c.Wallet() {
			t.Fatalf("copier %s has wallet %s", c.UID(), c.Wallet())
		}
	}
}
