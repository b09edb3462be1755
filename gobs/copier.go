// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"
)

// FeedCursor marks the durable position in a target wallet's trade history.
// RecentIDs holds trade ids at or near the watermark so that duplicate or
// reordered feed entries are not replayed.
type FeedCursor struct {
	Time time.Time

	RecentIDs []string
}

type CopierState struct {
	Wallet string

	Cursor FeedCursor

	// Offset is the next execution-record id offset for this copier.
	Offset uint64

	NumTrades  int64
	NumCopied  int64
	NumSkipped int64
	NumFailed  int64

	LastTradeTime time.Time
}
