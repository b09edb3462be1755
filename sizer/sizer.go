// Copyright (c) 2025 BVK Chaitanya

// Package sizer converts an observed target trade into a replica order
// decision. The computation is pure; callers pass in the current strategy,
// market metadata and portfolio values and receive either an order or a
// skip with a reason.
package sizer

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/polymarket"
	"github.com/bvk/copybot/strategy"
	"github.com/shopspring/decimal"
)

// Skip reasons, recorded on every trade that produces no order.
const (
	SkipConfigInvalid  = "CONFIG_INVALID"
	SkipStaleTrade     = "STALE_TRADE"
	SkipMaxPositions   = "MAX_POSITIONS"
	SkipExcludedMarket = "EXCLUDED_MARKET"
	SkipLowLiquidity   = "LOW_LIQUIDITY"
	SkipPriceDeviation = "PRICE_DEVIATION"
	SkipTooSmall       = "TOO_SMALL"
	SkipDirectionTaken = "DIRECTION_ALREADY_TAKEN"
	SkipBelowMinimum   = "BELOW_MINIMUM"
)

// Input carries everything one sizing decision depends on. Strategy is
// re-read from the store before building each Input, so edits apply to the
// very next trade.
type Input struct {
	Trade *polymarket.Trade

	Strategy *gobs.Strategy

	Market *polymarket.Market

	// Direction is the ledger direction already taken on this market, or
	// empty when none.
	Direction string

	// TargetPortfolioUSD is the watched wallet's position value. Only used
	// in PORTFOLIO mode.
	TargetPortfolioUSD decimal.Decimal

	// OwnPortfolioUSD is our position value. Only used in PORTFOLIO mode.
	OwnPortfolioUSD decimal.Decimal

	// LastPrice is a fresher last-trade price from the market channel, when
	// one is known. Zero means unknown. MARKET orders price off it and the
	// price-deviation check compares it against the observed trade price.
	LastPrice decimal.Decimal

	// OpenPositions is the number of markets currently holding a BUY
	// direction, for the max-open-positions gate.
	OpenPositions int

	Now time.Time
}

// Decision is the outcome of sizing one trade. Either Skip is true with a
// Reason, or Size/Price/Type describe the replica order.
type Decision struct {
	Skip   bool
	Reason string

	Size  decimal.Decimal
	Price decimal.Decimal

	// MinSize is the smallest acceptable replica size, the larger of the
	// strategy min-shares filter and the exchange minimum. The gateway
	// re-checks it after clamping the size to the available balance.
	MinSize decimal.Decimal

	// Type is "FOK" for market-style orders and "GTC" for limit orders.
	Type string
}

func skip(reason string) *Decision {
	return &Decision{Skip: true, Reason: reason}
}

// Compute runs the filter and sizing pipeline for one trade. A nil error
// with Decision.Skip set means the trade is deliberately not copied; a
// non-nil error means the inputs were unusable.
func Compute(in *Input) (*Decision, error) {
	t, s, m := in.Trade, in.Strategy, in.Market
	if t == nil || s == nil || m == nil {
		return nil, fmt.Errorf("trade, strategy and market are required: %w", os.ErrInvalid)
	}

	if err := strategy.Check(s); err != nil {
		return skip(SkipConfigInvalid), nil
	}

	if s.MaxTradeAge > 0 && in.Now.Sub(t.Time) > s.MaxTradeAge {
		return skip(SkipStaleTrade), nil
	}

	// Buys stop once the configured number of markets hold a position;
	// sells always pass so positions can be closed.
	if t.Side == polymarket.SideBuy && s.MaxOpenPositions > 0 && in.OpenPositions >= s.MaxOpenPositions {
		return skip(SkipMaxPositions), nil
	}

	if slices.Contains(s.ExcludedMarkets, t.Slug) || slices.Contains(s.ExcludedMarkets, t.MarketID) {
		return skip(SkipExcludedMarket), nil
	}

	if m.Closed || !m.Active {
		return skip(SkipLowLiquidity), nil
	}
	if !s.MinMarketLiquidityUSD.IsZero() && m.LiquidityUSD.LessThan(s.MinMarketLiquidityUSD) {
		return skip(SkipLowLiquidity), nil
	}

	if t.Price.IsZero() || t.Price.IsNegative() {
		return nil, fmt.Errorf("trade price %s is not positive: %w", t.Price, os.ErrInvalid)
	}

	// A market that has already moved too far from the observed trade price
	// is not worth chasing. Unknown current price passes.
	if !s.MaxSlippagePct.IsZero() && !in.LastPrice.IsZero() {
		deviation := in.LastPrice.Sub(t.Price).Abs().Div(t.Price).Mul(decimal.NewFromInt(100))
		if deviation.GreaterThan(s.MaxSlippagePct) {
			return skip(SkipPriceDeviation), nil
		}
	}

	notional, err := replicaNotional(in)
	if err != nil {
		return nil, err
	}

	// Clamp the replica value into the configured band.
	if !s.MaxOrderUSD.IsZero() && notional.GreaterThan(s.MaxOrderUSD) {
		notional = s.MaxOrderUSD
	}
	if notional.LessThan(s.MinOrderUSD) {
		notional = s.MinOrderUSD
	}

	ref := t.Price
	if s.OrderStyle == "MARKET" && !in.LastPrice.IsZero() {
		ref = in.LastPrice
	}
	price := orderPrice(ref, t.Side, s, m)
	size := notional.Div(price).RoundDown(2)

	if size.LessThan(s.MinShares) {
		return skip(SkipTooSmall), nil
	}

	// Same direction already taken on this market means a duplicate; only a
	// reversal is allowed through.
	if in.Direction == t.Side {
		return skip(SkipDirectionTaken), nil
	}

	if !m.MinOrderSize.IsZero() && size.LessThan(m.MinOrderSize) {
		return skip(SkipBelowMinimum), nil
	}

	minSize := s.MinShares
	if m.MinOrderSize.GreaterThan(minSize) {
		minSize = m.MinOrderSize
	}

	orderType := "GTC"
	if s.OrderStyle == "MARKET" {
		orderType = "FOK"
	}
	return &Decision{Size: size, Price: price, MinSize: minSize, Type: orderType}, nil
}

func replicaNotional(in *Input) (decimal.Decimal, error) {
	t, s := in.Trade, in.Strategy
	switch s.SizingMode {
	case "RATIO":
		return t.Notional().Mul(s.SizeRatio), nil

	case "PORTFOLIO":
		if in.TargetPortfolioUSD.IsZero() || in.TargetPortfolioUSD.IsNegative() {
			return decimal.Zero, fmt.Errorf("target portfolio value %s is not positive: %w", in.TargetPortfolioUSD, os.ErrInvalid)
		}
		scale := in.OwnPortfolioUSD.Div(in.TargetPortfolioUSD)
		return t.Notional().Mul(scale).Mul(s.SizeRatio), nil

	case "FIXED":
		return s.FixedAmountUSD, nil
	}
	return decimal.Zero, fmt.Errorf("unknown sizing mode %q: %w", s.SizingMode, os.ErrInvalid)
}

// orderPrice applies the configured slippage to the reference price and
// snaps the result onto the market's tick grid, staying inside (0, 1).
func orderPrice(ref decimal.Decimal, side string, s *gobs.Strategy, m *polymarket.Market) decimal.Decimal {
	price := ref
	if s.OrderStyle == "LIMIT" && !s.LimitSlippage.IsZero() {
		if side == polymarket.SideBuy {
			price = price.Add(s.LimitSlippage)
		} else {
			price = price.Sub(s.LimitSlippage)
		}
	}

	tick := m.TickSize
	if tick.IsZero() {
		tick = decimal.RequireFromString("0.01")
	}
	price = price.Div(tick).Round(0).Mul(tick)

	one := decimal.NewFromInt(1)
	if price.LessThan(tick) {
		price = tick
	}
	if price.GreaterThan(one.Sub(tick)) {
		price = one.Sub(tick)
	}
	return price
}
