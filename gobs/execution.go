// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExecutionRecord struct {
	UID string

	CopierUID string
	Wallet    string

	MarketID string
	TokenID  string
	Slug     string
	Outcome  string

	Side  string
	Size  decimal.Decimal
	Price decimal.Decimal

	SourceTradeID string
	SourceSize    decimal.Decimal
	SourcePrice   decimal.Decimal

	OrderID  string
	Accepted bool
	DryRun   bool

	FailureReason string

	Time time.Time
}
