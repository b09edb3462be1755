// Copyright (c) 2025 BVK Chaitanya

// Package feed turns the wallet trade-history endpoint into an incremental,
// deduplicated trade stream. A cursor marks the last processed trade; a poll
// returns only trades past the cursor, oldest first, and never mutates the
// cursor itself. Callers advance the cursor one trade at a time after each
// trade is durably processed, so a crash mid-batch re-emits only the
// unprocessed tail.
package feed

import (
	"context"
	"fmt"
	"slices"

	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/polymarket"
)

// Source is the trade-history surface of the data-api client.
type Source interface {
	GetTrades(ctx context.Context, wallet string, limit int) ([]*polymarket.Trade, error)
}

// maxRecentIDs bounds the per-cursor dedup list. Trade timestamps have
// one-second granularity, so the list only ever holds the ids seen at the
// watermark second.
const maxRecentIDs = 128

// Poller fetches new trades of one wallet past a cursor.
type Poller struct {
	source Source

	wallet string

	// fetchLimit is the page size requested from the source.
	fetchLimit int
}

func NewPoller(source Source, wallet string, fetchLimit int) *Poller {
	if fetchLimit <= 0 {
		fetchLimit = 100
	}
	return &Poller{
		source:     source,
		wallet:     wallet,
		fetchLimit: fetchLimit,
	}
}

// Poll returns the trades past the cursor in ascending (time, id) order.
// The cursor is read, never written; polling twice with the same cursor and
// no new upstream trades returns an empty slice both times.
func (p *Poller) Poll(ctx context.Context, cursor *gobs.FeedCursor) ([]*polymarket.Trade, error) {
	trades, err := p.source.GetTrades(ctx, p.wallet, p.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("could not poll trades for wallet %q: %w", p.wallet, err)
	}

	var fresh []*polymarket.Trade
	for _, t := range trades {
		if t.Time.Before(cursor.Time) {
			continue
		}
		if t.Time.Equal(cursor.Time) && slices.Contains(cursor.RecentIDs, t.ID) {
			continue
		}
		fresh = append(fresh, t)
	}
	polymarket.SortTrades(fresh)
	return fresh, nil
}

// Advance moves the cursor past the given trade. Called once per trade,
// after the trade's outcome (copied, skipped or failed-terminally) has been
// durably recorded.
func Advance(cursor *gobs.FeedCursor, t *polymarket.Trade) {
	if t.Time.After(cursor.Time) {
		cursor.Time = t.Time
		cursor.RecentIDs = []string{t.ID}
		return
	}
	if slices.Contains(cursor.RecentIDs, t.ID) {
		return
	}
	cursor.RecentIDs = append(cursor.RecentIDs, t.ID)
	if len(cursor.RecentIDs) > maxRecentIDs {
		cursor.RecentIDs = cursor.RecentIDs[len(cursor.RecentIDs)-maxRecentIDs:]
	}
}
