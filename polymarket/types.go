// Copyright (c) 2025 BVK Chaitanya

// Package polymarket implements clients for the Polymarket data-api, the
// gamma metadata api and the CLOB exchange endpoint.
package polymarket

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a single fill observed in a wallet's public trade history.
type Trade struct {
	// ID is the on-chain transaction hash of the fill.
	ID string

	Wallet string

	// MarketID is the market's condition id.
	MarketID string

	// TokenID is the outcome token that was traded.
	TokenID string

	// Side is "BUY" or "SELL" from the wallet's perspective.
	Side string

	Size  decimal.Decimal
	Price decimal.Decimal

	Outcome string
	Title   string
	Slug    string

	Time time.Time
}

// Notional returns the USD value of the fill.
func (t *Trade) Notional() decimal.Decimal {
	return t.Size.Mul(t.Price)
}

// Position is an outcome-token holding of a wallet.
type Position struct {
	MarketID string
	TokenID  string

	Size     decimal.Decimal
	AvgPrice decimal.Decimal

	Outcome string
	Slug    string
}

// Market holds the gamma api metadata for a single market.
type Market struct {
	ConditionID string

	Slug     string
	Question string

	LiquidityUSD decimal.Decimal

	Active bool
	Closed bool

	// TokenIDs are the outcome token ids in outcome order.
	TokenIDs []string

	MinOrderSize decimal.Decimal
	TickSize     decimal.Decimal

	FetchTime time.Time
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)
