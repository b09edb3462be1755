// Copyright (c) 2025 BVK Chaitanya

// Package strategy persists the replication parameters and serves them with
// read-fresh-every-call semantics. Every sizing decision re-reads the
// current strategy, so an operator edit takes effect on the next observed
// trade without restarting any copier.
package strategy

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/shopspring/decimal"
)

const Key = "/strategy/config"

// Store reads and writes the single strategy record. It holds no cache; the
// database is the only copy.
type Store struct {
	db kv.Database
}

func NewStore(db kv.Database) *Store {
	return &Store{db: db}
}

// Current returns the strategy as stored right now. Returns os.ErrNotExist
// when no strategy was ever configured.
func (s *Store) Current(ctx context.Context) (*gobs.Strategy, error) {
	v, err := kvutil.GetDB[gobs.Strategy](ctx, s.db, Key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set validates and atomically replaces the strategy.
func (s *Store) Set(ctx context.Context, v *gobs.Strategy) error {
	if err := Check(v); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}
	v.UpdateTime = time.Now()
	if err := kvutil.SetDB(ctx, s.db, Key, v); err != nil {
		return fmt.Errorf("could not save strategy: %w", err)
	}
	return nil
}

// Check validates a strategy record. Copiers also call this before every
// sizing decision; a strategy that fails validation skips the trade instead
// of guessing at an order size.
func Check(v *gobs.Strategy) error {
	switch v.SizingMode {
	case "RATIO", "PORTFOLIO":
		if v.SizeRatio.IsZero() || v.SizeRatio.IsNegative() {
			return fmt.Errorf("size ratio must be positive in %s mode: %w", v.SizingMode, os.ErrInvalid)
		}
	case "FIXED":
		if v.FixedAmountUSD.IsZero() || v.FixedAmountUSD.IsNegative() {
			return fmt.Errorf("fixed amount must be positive in FIXED mode: %w", os.ErrInvalid)
		}
	default:
		return fmt.Errorf("sizing mode must be RATIO, PORTFOLIO or FIXED: %w", os.ErrInvalid)
	}

	switch v.OrderStyle {
	case "MARKET":
	case "LIMIT":
		if v.LimitSlippage.IsNegative() {
			return fmt.Errorf("limit slippage cannot be negative: %w", os.ErrInvalid)
		}
	default:
		return fmt.Errorf("order style must be MARKET or LIMIT: %w", os.ErrInvalid)
	}

	if v.MinOrderUSD.IsNegative() || v.MaxOrderUSD.IsNegative() {
		return fmt.Errorf("order value bounds cannot be negative: %w", os.ErrInvalid)
	}
	if !v.MaxOrderUSD.IsZero() && v.MaxOrderUSD.LessThan(v.MinOrderUSD) {
		return fmt.Errorf("max order value cannot be below min order value: %w", os.ErrInvalid)
	}
	if v.MinShares.IsNegative() {
		return fmt.Errorf("min shares cannot be negative: %w", os.ErrInvalid)
	}
	if v.MaxTradeAge < 0 {
		return fmt.Errorf("max trade age cannot be negative: %w", os.ErrInvalid)
	}
	if v.MinMarketLiquidityUSD.IsNegative() {
		return fmt.Errorf("min market liquidity cannot be negative: %w", os.ErrInvalid)
	}
	if v.MaxOpenPositions < 0 {
		return fmt.Errorf("max open positions cannot be negative: %w", os.ErrInvalid)
	}
	if v.MaxSlippagePct.IsNegative() {
		return fmt.Errorf("max slippage percentage cannot be negative: %w", os.ErrInvalid)
	}
	if v.LowBalanceAlertUSD.IsNegative() {
		return fmt.Errorf("low balance alert threshold cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}

// Default returns a conservative starting strategy.
func Default() *gobs.Strategy {
	return &gobs.Strategy{
		SizingMode:       "RATIO",
		SizeRatio:        decimal.RequireFromString("0.01"),
		OrderStyle:       "LIMIT",
		LimitSlippage:    decimal.RequireFromString("0.02"),
		MinOrderUSD:      decimal.NewFromInt(1),
		MaxOrderUSD:      decimal.NewFromInt(100),
		MinShares:        decimal.NewFromInt(5),
		MaxTradeAge:      5 * time.Minute,
		MaxOpenPositions: 10,
		MaxSlippagePct:   decimal.NewFromInt(2),
		DryRun:           true,
	}
}
