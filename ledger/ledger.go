// Copyright (c) 2025 BVK Chaitanya

// Package ledger tracks the direction taken on each market. At most one
// same-direction order is allowed per market across all watched wallets; a
// reversal replaces the recorded direction.
package ledger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/kvutil"
	"github.com/bvk/copybot/syncmap"
	"github.com/bvkgo/kv"
)

const Keyspace = "/ledger/"

// Ledger is the durable per-market direction record. Entries are written
// only after the exchange has accepted an order, so a restart never forgets
// a direction already taken and never remembers one that was not.
type Ledger struct {
	db kv.Database

	muMap syncmap.Map[string, *sync.Mutex]
}

// New creates a ledger over the given database.
func New(db kv.Database) *Ledger {
	return &Ledger{db: db}
}

// LockMarket acquires the mutex serializing order placement on a market.
// Concurrent copiers trading the same market must hold this lock across
// the direction check and the order submission, so both cannot pass the
// no-direction-taken check simultaneously. Returns the unlock func.
func (l *Ledger) LockMarket(marketID string) func() {
	mu, _ := l.muMap.LoadOrStore(marketID, new(sync.Mutex))
	mu.Lock()
	return mu.Unlock
}

// Get returns the recorded direction entry for a market. Returns
// os.ErrNotExist when no direction was taken.
func (l *Ledger) Get(ctx context.Context, marketID string) (*gobs.DirectionEntry, error) {
	v, err := kvutil.GetDB[gobs.DirectionEntry](ctx, l.db, Keyspace+marketID)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Record durably saves the direction taken on a market, overwriting any
// previous entry. Callers must invoke this only after the exchange accepts
// the order.
func (l *Ledger) Record(ctx context.Context, marketID, direction, wallet, orderID string) error {
	if direction != "BUY" && direction != "SELL" {
		return fmt.Errorf("direction must be BUY or SELL: %w", os.ErrInvalid)
	}
	entry := &gobs.DirectionEntry{
		MarketID:   marketID,
		Direction:  direction,
		Wallet:     wallet,
		OrderID:    orderID,
		UpdateTime: time.Now(),
	}
	if err := kvutil.SetDB(ctx, l.db, Keyspace+marketID, entry); err != nil {
		return fmt.Errorf("could not save ledger entry for market %q: %w", marketID, err)
	}
	return nil
}

// Scan iterates over all ledger entries in market id order.
func (l *Ledger) Scan(ctx context.Context, fn func(*gobs.DirectionEntry) error) error {
	begin, end := kvutil.PathRange(strings.TrimSuffix(Keyspace, "/"))
	return kvutil.AscendDB(ctx, l.db, begin, end, func(_ context.Context, _ kv.Reader, key string, entry *gobs.DirectionEntry) error {
		return fn(entry)
	})
}
