// Copyright (c) 2025 BVK Chaitanya

package sizer

import (
	"testing"
	"time"

	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/polymarket"
	"github.com/shopspring/decimal"
)

func testStrategy() *gobs.Strategy {
	return &gobs.Strategy{
		SizingMode:    "RATIO",
		SizeRatio:     decimal.RequireFromString("0.1"),
		OrderStyle:    "LIMIT",
		LimitSlippage: decimal.RequireFromString("0.02"),
		MinOrderUSD:   decimal.NewFromInt(1),
		MaxOrderUSD:   decimal.NewFromInt(100),
		MinShares:     decimal.NewFromInt(5),
		MaxTradeAge:   5 * time.Minute,
	}
}

func testMarket() *polymarket.Market {
	return &polymarket.Market{
		ConditionID:  "0xcond",
		Slug:         "test-market",
		LiquidityUSD: decimal.NewFromInt(50000),
		Active:       true,
		MinOrderSize: decimal.NewFromInt(5),
		TickSize:     decimal.RequireFromString("0.01"),
	}
}

func testTrade() *polymarket.Trade {
	return &polymarket.Trade{
		ID:       "0xhash",
		Wallet:   "0xabc",
		MarketID: "0xcond",
		Side:     polymarket.SideBuy,
		Size:     decimal.NewFromInt(1000),
		Price:    decimal.RequireFromString("0.50"),
		Slug:     "test-market",
		Time:     time.Unix(1700000000, 0),
	}
}

func testInput() *Input {
	return &Input{
		Trade:    testTrade(),
		Strategy: testStrategy(),
		Market:   testMarket(),
		Now:      time.Unix(1700000000, 0).Add(time.Minute),
	}
}

func TestRatioSizing(t *testing.T) {
	d, err := Compute(testInput())
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("unexpected skip: %s", d.Reason)
	}
	// 1000 * 0.50 * 0.1 = $50 at limit price 0.52.
	if want := "0.52"; d.Price.String() != want {
		t.Fatalf("want price %s, got %s", want, d.Price)
	}
	if want := "96.15"; d.Size.String() != want {
		t.Fatalf("want size %s, got %s", want, d.Size)
	}
	if d.Type != "GTC" {
		t.Fatalf("want GTC for limit order, got %s", d.Type)
	}
}

func TestFixedSizing(t *testing.T) {
	in := testInput()
	in.Strategy.SizingMode = "FIXED"
	in.Strategy.FixedAmountUSD = decimal.NewFromInt(10)
	in.Strategy.OrderStyle = "MARKET"

	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("unexpected skip: %s", d.Reason)
	}
	// $10 at the observed price 0.50, no slippage for market style.
	if want := "20"; d.Size.String() != want {
		t.Fatalf("want size %s, got %s", want, d.Size)
	}
	if d.Type != "FOK" {
		t.Fatalf("want FOK for market order, got %s", d.Type)
	}
}

func TestMarketOrderUsesLastPrice(t *testing.T) {
	in := testInput()
	in.Strategy.SizingMode = "FIXED"
	in.Strategy.FixedAmountUSD = decimal.NewFromInt(10)
	in.Strategy.OrderStyle = "MARKET"
	in.LastPrice = decimal.RequireFromString("0.40")

	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("unexpected skip: %s", d.Reason)
	}
	if want := "0.4"; d.Price.String() != want {
		t.Fatalf("want price %s, got %s", want, d.Price)
	}
	// $10 at the fresher last price 0.40.
	if want := "25"; d.Size.String() != want {
		t.Fatalf("want size %s, got %s", want, d.Size)
	}

	// Limit orders keep pricing off the observed trade.
	in.Strategy.OrderStyle = "LIMIT"
	d, err = Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if want := "0.52"; d.Price.String() != want {
		t.Fatalf("want price %s, got %s", want, d.Price)
	}
}

func TestPortfolioSizing(t *testing.T) {
	in := testInput()
	in.Strategy.SizingMode = "PORTFOLIO"
	in.Strategy.SizeRatio = decimal.NewFromInt(1)
	in.TargetPortfolioUSD = decimal.NewFromInt(100000)
	in.OwnPortfolioUSD = decimal.NewFromInt(1000)

	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("unexpected skip: %s", d.Reason)
	}
	// $500 scaled by 1000/100000 = $5 at 0.52.
	if want := "9.61"; d.Size.String() != want {
		t.Fatalf("want size %s, got %s", want, d.Size)
	}

	in.TargetPortfolioUSD = decimal.Zero
	if _, err := Compute(in); err == nil {
		t.Fatal("want error for zero target portfolio")
	}
}

func TestSkipReasons(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Input)
		want   string
	}{
		{"config-invalid", func(in *Input) { in.Strategy.SizingMode = "DOUBLE" }, SkipConfigInvalid},
		{"stale", func(in *Input) { in.Now = in.Trade.Time.Add(time.Hour) }, SkipStaleTrade},
		{"excluded-slug", func(in *Input) { in.Strategy.ExcludedMarkets = []string{"test-market"} }, SkipExcludedMarket},
		{"excluded-id", func(in *Input) { in.Strategy.ExcludedMarkets = []string{"0xcond"} }, SkipExcludedMarket},
		{"closed", func(in *Input) { in.Market.Closed = true }, SkipLowLiquidity},
		{"thin", func(in *Input) {
			in.Strategy.MinMarketLiquidityUSD = decimal.NewFromInt(100000)
		}, SkipLowLiquidity},
		{"direction-taken", func(in *Input) { in.Direction = polymarket.SideBuy }, SkipDirectionTaken},
		{"max-positions", func(in *Input) {
			in.Strategy.MaxOpenPositions = 2
			in.OpenPositions = 2
		}, SkipMaxPositions},
		{"price-moved", func(in *Input) {
			// 10% deviation against a 2% tolerance.
			in.Strategy.MaxSlippagePct = decimal.NewFromInt(2)
			in.LastPrice = decimal.RequireFromString("0.55")
		}, SkipPriceDeviation},
		{"too-small", func(in *Input) {
			// 3 replica shares against a min-shares filter of 5.
			in.Strategy.SizingMode = "FIXED"
			in.Strategy.FixedAmountUSD = decimal.RequireFromString("1.56")
			in.Strategy.MinOrderUSD = decimal.Zero
			in.Strategy.MinShares = decimal.NewFromInt(5)
		}, SkipTooSmall},
		{"below-exchange-minimum", func(in *Input) {
			in.Strategy.SizingMode = "FIXED"
			in.Strategy.FixedAmountUSD = decimal.NewFromInt(3)
			in.Strategy.MinOrderUSD = decimal.Zero
			in.Strategy.MinShares = decimal.NewFromInt(1)
			in.Market.MinOrderSize = decimal.NewFromInt(10)
		}, SkipBelowMinimum},
	}
	for _, c := range cases {
		in := testInput()
		c.modify(in)
		d, err := Compute(in)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", c.name, err)
			continue
		}
		if !d.Skip || d.Reason != c.want {
			t.Errorf("%s: want skip %s, got %+v", c.name, c.want, d)
		}
	}
}

func TestMaxPositionsGatesBuysOnly(t *testing.T) {
	in := testInput()
	in.Strategy.MaxOpenPositions = 1
	in.OpenPositions = 1

	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Skip || d.Reason != SkipMaxPositions {
		t.Fatalf("want max-positions skip for buy, got %+v", d)
	}

	// Sells pass the gate so positions can be closed.
	in.Trade.Side = polymarket.SideSell
	d, err = Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("sell gated by max positions: %s", d.Reason)
	}
}

func TestPriceDeviationTolerance(t *testing.T) {
	in := testInput()
	in.Strategy.MaxSlippagePct = decimal.NewFromInt(2)

	// A 1% move stays within the 2% tolerance.
	in.LastPrice = decimal.RequireFromString("0.505")
	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("small deviation skipped: %s", d.Reason)
	}

	// Unknown current price passes.
	in.LastPrice = decimal.Zero
	d, err = Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("unknown price skipped: %s", d.Reason)
	}
}

func TestDustFilterBeforeDirectionCheck(t *testing.T) {
	// 3 replica shares against a min-shares filter of 5, on a market whose
	// direction is already taken. The size filter wins.
	in := testInput()
	in.Direction = polymarket.SideBuy
	in.Strategy.SizingMode = "FIXED"
	in.Strategy.FixedAmountUSD = decimal.RequireFromString("1.56")
	in.Strategy.MinOrderUSD = decimal.Zero
	in.Strategy.MinShares = decimal.NewFromInt(5)

	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Skip || d.Reason != SkipTooSmall {
		t.Fatalf("want %s, got %+v", SkipTooSmall, d)
	}
}

func TestReversalAllowed(t *testing.T) {
	in := testInput()
	in.Direction = polymarket.SideBuy
	in.Trade.Side = polymarket.SideSell

	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("reversal skipped: %s", d.Reason)
	}
	// Sell slippage subtracts from the observed price.
	if want := "0.48"; d.Price.String() != want {
		t.Fatalf("want price %s, got %s", want, d.Price)
	}
}

func TestOrderValueClamps(t *testing.T) {
	in := testInput()
	in.Strategy.MaxOrderUSD = decimal.NewFromInt(10)

	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("unexpected skip: %s", d.Reason)
	}
	// $50 replica value clamped to $10 at 0.52.
	if want := "19.23"; d.Size.String() != want {
		t.Fatalf("want size %s, got %s", want, d.Size)
	}
}

func TestPriceStaysInsideBand(t *testing.T) {
	in := testInput()
	in.Trade.Price = decimal.RequireFromString("0.99")

	d, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if d.Skip {
		t.Fatalf("unexpected skip: %s", d.Reason)
	}
	if want := "0.99"; d.Price.String() != want {
		t.Fatalf("want price clamped to %s, got %s", want, d.Price)
	}
}
