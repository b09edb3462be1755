// Copyright (c) 2025 BVK Chaitanya

package feed

import (
	"context"
	"testing"
	"time"

	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/polymarket"
	"github.com/shopspring/decimal"
)

type fakeSource struct {
	trades []*polymarket.Trade
}

func (s *fakeSource) GetTrades(ctx context.Context, wallet string, limit int) ([]*polymarket.Trade, error) {
	return s.trades, nil
}

func makeTrade(id string, at time.Time) *polymarket.Trade {
	return &polymarket.Trade{
		ID:       id,
		Wallet:   "0xabc",
		MarketID: "m-" + id,
		Side:     polymarket.SideBuy,
		Size:     decimal.NewFromInt(10),
		Price:    decimal.RequireFromString("0.5"),
		Time:     at,
	}
}

func TestPollIdempotent(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	source := &fakeSource{trades: []*polymarket.Trade{
		makeTrade("a", t0),
		makeTrade("b", t0.Add(time.Second)),
	}}
	p := NewPoller(source, "0xabc", 100)

	cursor := &gobs.FeedCursor{}
	fresh, err := p.Poll(ctx, cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 2 {
		t.Fatalf("want 2 trades, got %d", len(fresh))
	}
	if fresh[0].ID != "a" || fresh[1].ID != "b" {
		t.Fatalf("trades not in ascending order: %v %v", fresh[0].ID, fresh[1].ID)
	}

	for _, tr := range fresh {
		Advance(cursor, tr)
	}

	// Same upstream data, advanced cursor: nothing new, cursor unchanged.
	before := *cursor
	fresh, err = p.Poll(ctx, cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 0 {
		t.Fatalf("want no trades after advance, got %d", len(fresh))
	}
	if !cursor.Time.Equal(before.Time) || len(cursor.RecentIDs) != len(before.RecentIDs) {
		t.Fatal("poll mutated the cursor")
	}
}

func TestPollSameSecond(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	source := &fakeSource{trades: []*polymarket.Trade{
		makeTrade("a", t0),
		makeTrade("b", t0),
		makeTrade("c", t0),
	}}
	p := NewPoller(source, "0xabc", 100)

	cursor := &gobs.FeedCursor{}
	fresh, err := p.Poll(ctx, cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 3 {
		t.Fatalf("want 3 trades, got %d", len(fresh))
	}

	// Advance past only the first; a re-poll returns the remaining two.
	Advance(cursor, fresh[0])
	fresh, err = p.Poll(ctx, cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 2 {
		t.Fatalf("want 2 trades after partial advance, got %d", len(fresh))
	}
	if fresh[0].ID != "b" || fresh[1].ID != "c" {
		t.Fatalf("unexpected remaining trades: %v %v", fresh[0].ID, fresh[1].ID)
	}
}

func TestAdvanceResetsOnNewSecond(t *testing.T) {
	t0 := time.Unix(1700000000, 0)

	cursor := &gobs.FeedCursor{}
	Advance(cursor, makeTrade("a", t0))
	Advance(cursor, makeTrade("b", t0))
	if len(cursor.RecentIDs) != 2 {
		t.Fatalf("want 2 recent ids, got %v", cursor.RecentIDs)
	}

	Advance(cursor, makeTrade("c", t0.Add(time.Second)))
	if len(cursor.RecentIDs) != 1 || cursor.RecentIDs[0] != "c" {
		t.Fatalf("want recent ids reset to [c], got %v", cursor.RecentIDs)
	}
	if !cursor.Time.Equal(t0.Add(time.Second)) {
		t.Fatalf("unexpected cursor time %v", cursor.Time)
	}
}

func TestPollDropsOlderTrades(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	source := &fakeSource{trades: []*polymarket.Trade{
		makeTrade("old", t0.Add(-time.Hour)),
		makeTrade("new", t0.Add(time.Second)),
	}}
	p := NewPoller(source, "0xabc", 100)

	cursor := &gobs.FeedCursor{Time: t0, RecentIDs: []string{"seen"}}
	fresh, err := p.Poll(ctx, cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 1 || fresh[0].ID != "new" {
		t.Fatalf("unexpected trades: %+v", fresh)
	}
}
