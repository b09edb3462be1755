// Copyright (c) 2025 BVK Chaitanya

package strategy

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bvk/copybot/gobs"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kvmemdb.New())

	if _, err := s.Current(ctx); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}

	v := Default()
	if err := s.Set(ctx, v); err != nil {
		t.Fatal(err)
	}

	got, err := s.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.SizingMode != "RATIO" || !got.DryRun {
		t.Fatalf("unexpected strategy: %+v", got)
	}
	if got.UpdateTime.IsZero() {
		t.Fatal("update time is not set")
	}

	// A later write is visible on the next read.
	v.SizingMode = "FIXED"
	v.FixedAmountUSD = decimal.NewFromInt(10)
	if err := s.Set(ctx, v); err != nil {
		t.Fatal(err)
	}
	got, err = s.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.SizingMode != "FIXED" {
		t.Fatalf("want FIXED after update, got %q", got.SizingMode)
	}
}

func TestCheck(t *testing.T) {
	valid := func() *gobs.Strategy {
		v := Default()
		v.DryRun = false
		return v
	}

	cases := []struct {
		name   string
		modify func(*gobs.Strategy)
	}{
		{"bad-mode", func(v *gobs.Strategy) { v.SizingMode = "DOUBLE" }},
		{"zero-ratio", func(v *gobs.Strategy) { v.SizeRatio = decimal.Zero }},
		{"negative-ratio", func(v *gobs.Strategy) { v.SizeRatio = decimal.NewFromInt(-1) }},
		{"fixed-no-amount", func(v *gobs.Strategy) { v.SizingMode = "FIXED" }},
		{"bad-style", func(v *gobs.Strategy) { v.OrderStyle = "STOP" }},
		{"negative-slippage", func(v *gobs.Strategy) { v.LimitSlippage = decimal.NewFromInt(-1) }},
		{"max-below-min", func(v *gobs.Strategy) {
			v.MinOrderUSD = decimal.NewFromInt(50)
			v.MaxOrderUSD = decimal.NewFromInt(10)
		}},
		{"negative-age", func(v *gobs.Strategy) { v.MaxTradeAge = -time.Minute }},
		{"negative-liquidity", func(v *gobs.Strategy) { v.MinMarketLiquidityUSD = decimal.NewFromInt(-5) }},
		{"negative-max-positions", func(v *gobs.Strategy) { v.MaxOpenPositions = -1 }},
		{"negative-max-slippage", func(v *gobs.Strategy) { v.MaxSlippagePct = decimal.NewFromInt(-2) }},
	}
	for _, c := range cases {
		v := valid()
		c.modify(v)
		if err := Check(v); err == nil {
			t.Errorf("%s: want error, got nil", c.name)
		}
	}

	if err := Check(valid()); err != nil {
		t.Errorf("valid strategy rejected: %v", err)
	}

	// PORTFOLIO mode uses the ratio field.
	v := valid()
	v.SizingMode = "PORTFOLIO"
	if err := Check(v); err != nil {
		t.Errorf("portfolio strategy rejected: %v", err)
	}
}

func TestSetRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kvmemdb.New())

	v := Default()
	v.SizingMode = "DOUBLE"
	if err := s.Set(ctx, v); err == nil {
		t.Fatal("want error for invalid strategy")
	}
	if _, err := s.Current(ctx); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist after rejected set, got %v", err)
	}
}
