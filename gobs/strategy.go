// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

// Strategy holds the replication parameters shared by all copier jobs. There
// is a single strategy in the database and it is re-read before every sizing
// decision, so edits take effect without a restart.
type Strategy struct {
	// SizingMode is one of "RATIO", "PORTFOLIO" or "FIXED".
	SizingMode string

	// SizeRatio scales the target trader's notional in RATIO mode.
	SizeRatio decimal.Decimal

	// FixedAmountUSD is the per-trade notional in FIXED mode.
	FixedAmountUSD decimal.Decimal

	// OrderStyle is one of "MARKET" or "LIMIT".
	OrderStyle string

	// LimitSlippage is the price offset added (for buys) or subtracted (for
	// sells) to the observed trade price when submitting limit orders.
	LimitSlippage decimal.Decimal

	MinOrderUSD decimal.Decimal
	MaxOrderUSD decimal.Decimal

	// MinShares is the minimum order size accepted by the exchange.
	MinShares decimal.Decimal

	// MaxTradeAge drops target trades observed too long after execution.
	MaxTradeAge time.Duration

	// MinMarketLiquidityUSD skips markets with liquidity below this value.
	MinMarketLiquidityUSD decimal.Decimal

	// MaxOpenPositions stops new buys once this many markets hold a BUY
	// direction; sells always pass. Zero disables the gate.
	MaxOpenPositions int

	// MaxSlippagePct skips a trade when the current market price deviates
	// from the observed trade price by more than this percentage. Zero
	// disables the check.
	MaxSlippagePct decimal.Decimal

	// ExcludedMarkets lists market slugs that are never copied.
	ExcludedMarkets []string

	// LowBalanceAlertUSD triggers an operator alert when the available
	// balance drops below this value. Zero disables the alert.
	LowBalanceAlertUSD decimal.Decimal

	// DryRun runs the full pipeline, but logs orders instead of submitting
	// them to the exchange.
	DryRun bool

	UpdateTime time.Time
}
