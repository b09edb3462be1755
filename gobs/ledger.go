// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"
)

// DirectionEntry records the last order direction taken in a market. Entries
// are overwritten on reversals and never deleted.
type DirectionEntry struct {
	MarketID string

	// Direction is "BUY" or "SELL".
	Direction string

	// Wallet is the target wallet whose trade produced the entry.
	Wallet string

	OrderID string

	UpdateTime time.Time
}
