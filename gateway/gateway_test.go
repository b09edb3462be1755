// Copyright (c) 2025 BVK Chaitanya

package gateway

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/ledger"
	"github.com/bvk/copybot/polymarket"
	"github.com/bvk/copybot/sizer"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

type fakeExchange struct {
	balance decimal.Decimal

	failures []error

	orders []*polymarket.OrderRequest
}

func (e *fakeExchange) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return e.balance, nil
}

func (e *fakeExchange) SubmitOrder(ctx context.Context, req *polymarket.OrderRequest) (*polymarket.OrderResult, error) {
	if len(e.failures) > 0 {
		err := e.failures[0]
		e.failures = e.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	e.orders = append(e.orders, req)
	return &polymarket.OrderResult{OrderID: "order-1", Status: "matched"}, nil
}

func testRequest() *Request {
	return &Request{
		Trade: &polymarket.Trade{
			ID:       "0xhash",
			Wallet:   "0xabc",
			MarketID: "m1",
			Side:     polymarket.SideBuy,
			Size:     decimal.NewFromInt(100),
			Price:    decimal.RequireFromString("0.5"),
			Slug:     "test-market",
			Time:     time.Now(),
		},
		Decision: &sizer.Decision{
			Size:    decimal.NewFromInt(10),
			Price:   decimal.RequireFromString("0.52"),
			MinSize: decimal.NewFromInt(5),
			Type:    "GTC",
		},
		CopierUID: "copier-1",
		TokenID:   "token-1",
	}
}

func TestSubmitAccepted(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := ledger.New(db)
	exchange := &fakeExchange{balance: decimal.NewFromInt(1000)}
	g := New(db, l, exchange)
	defer g.Close()

	result, err := g.Submit(ctx, testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.Reason)
	}
	if !result.Record.Accepted || result.Record.OrderID != "order-1" {
		t.Fatalf("unexpected record: %+v", result.Record)
	}

	entry, err := l.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != polymarket.SideBuy {
		t.Fatalf("want BUY in ledger, got %q", entry.Direction)
	}

	count := 0
	err = ScanExecutions(ctx, db, time.Time{}, time.Time{}, func(r *gobs.ExecutionRecord) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("want 1 execution record, got %d", count)
	}
}

func TestSubmitDirectionTaken(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := ledger.New(db)
	exchange := &fakeExchange{balance: decimal.NewFromInt(1000)}
	g := New(db, l, exchange)
	defer g.Close()

	if err := l.Record(ctx, "m1", "BUY", "0xother", "order-0"); err != nil {
		t.Fatal(err)
	}

	result, err := g.Submit(ctx, testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped || result.Reason != sizer.SkipDirectionTaken {
		t.Fatalf("want direction-taken skip, got %+v", result)
	}
	if len(exchange.orders) != 0 {
		t.Fatal("order submitted despite existing direction")
	}
}

func TestSubmitReversal(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := ledger.New(db)
	exchange := &fakeExchange{balance: decimal.NewFromInt(1000)}
	g := New(db, l, exchange)
	defer g.Close()

	if err := l.Record(ctx, "m1", "BUY", "0xother", "order-0"); err != nil {
		t.Fatal(err)
	}

	req := testRequest()
	req.Trade.Side = polymarket.SideSell
	result, err := g.Submit(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped {
		t.Fatalf("reversal skipped: %s", result.Reason)
	}

	entry, err := l.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != polymarket.SideSell {
		t.Fatalf("want SELL after reversal, got %q", entry.Direction)
	}
}

func TestSubmitTerminalFailure(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := ledger.New(db)
	exchange := &fakeExchange{
		balance:  decimal.NewFromInt(1000),
		failures: []error{&polymarket.StatusError{StatusCode: http.StatusBadRequest, Message: "invalid order"}},
	}
	g := New(db, l, exchange)
	defer g.Close()

	if _, err := g.Submit(ctx, testRequest()); err == nil {
		t.Fatal("want error for rejected order")
	}
	if len(exchange.orders) != 0 {
		t.Fatal("terminal failure was retried")
	}

	// No ledger entry for a failed submission; the failure is still in the
	// execution log.
	if _, err := l.Get(ctx, "m1"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want empty ledger after failure, got %v", err)
	}
	count := 0
	err := ScanExecutions(ctx, db, time.Time{}, time.Time{}, func(r *gobs.ExecutionRecord) error {
		if r.Accepted || len(r.FailureReason) == 0 {
			t.Errorf("unexpected record: %+v", r)
		}
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("want 1 failure record, got %d", count)
	}
}

func TestSubmitTransientRetry(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := ledger.New(db)
	exchange := &fakeExchange{
		balance:  decimal.NewFromInt(1000),
		failures: []error{&polymarket.StatusError{StatusCode: http.StatusBadGateway}},
	}
	g := New(db, l, exchange)
	defer g.Close()

	result, err := g.Submit(ctx, testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped || !result.Record.Accepted {
		t.Fatalf("want accepted order after retry, got %+v", result)
	}
	if len(exchange.orders) != 1 {
		t.Fatalf("want 1 accepted order, got %d", len(exchange.orders))
	}
}

func TestSubmitBalanceClamp(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := ledger.New(db)
	exchange := &fakeExchange{balance: decimal.RequireFromString("2.6")}
	g := New(db, l, exchange)
	defer g.Close()

	result, err := g.Submit(ctx, testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.Reason)
	}
	// $2.60 of collateral at 0.52 affords 5 of the 10 shares asked for.
	if want := "5"; result.Record.Size.String() != want {
		t.Fatalf("want clamped size %s, got %s", want, result.Record.Size)
	}
	if len(exchange.orders) != 1 || exchange.orders[0].Size.String() != "5" {
		t.Fatalf("unexpected submitted orders: %+v", exchange.orders)
	}
	entry, err := l.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != polymarket.SideBuy {
		t.Fatalf("want BUY in ledger, got %q", entry.Direction)
	}
}

func TestSubmitBalanceBelowMinimum(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := ledger.New(db)
	exchange := &fakeExchange{balance: decimal.NewFromInt(1)}
	g := New(db, l, exchange)
	defer g.Close()

	// $1 affords only 1.92 shares against a minimum size of 5.
	result, err := g.Submit(ctx, testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped || result.Reason != sizer.SkipBelowMinimum {
		t.Fatalf("want below-minimum skip, got %+v", result)
	}
	if len(exchange.orders) != 0 {
		t.Fatal("order submitted despite low balance")
	}
}

func TestSubmitDryRun(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := ledger.New(db)
	g := New(db, l, nil)
	defer g.Close()

	req := testRequest()
	req.DryRun = true
	result, err := g.Submit(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped || !result.Record.Accepted || !result.Record.DryRun {
		t.Fatalf("unexpected dry-run result: %+v", result)
	}

	// Dry-run orders still take the direction, so a later real run does not
	// double up on markets the dry run already "traded".
	entry, err := l.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != polymarket.SideBuy {
		t.Fatalf("want BUY in ledger after dry run, got %q", entry.Direction)
	}
}
