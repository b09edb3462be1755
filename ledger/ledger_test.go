// Copyright (c) 2025 BVK Chaitanya

package ledger

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/bvk/copybot/gobs"
	"github.com/bvkgo/kv/kvmemdb"
)

func TestRecordGet(t *testing.T) {
	ctx := context.Background()
	l := New(kvmemdb.New())

	if _, err := l.Get(ctx, "m1"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}

	if err := l.Record(ctx, "m1", "BUY", "0xabc", "order-1"); err != nil {
		t.Fatal(err)
	}
	entry, err := l.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != "BUY" || entry.Wallet != "0xabc" || entry.OrderID != "order-1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	// Reversal replaces the recorded direction.
	if err := l.Record(ctx, "m1", "SELL", "0xdef", "order-2"); err != nil {
		t.Fatal(err)
	}
	entry, err = l.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Direction != "SELL" || entry.OrderID != "order-2" {
		t.Fatalf("unexpected entry after reversal: %+v", entry)
	}
}

func TestRecordInvalidDirection(t *testing.T) {
	ctx := context.Background()
	l := New(kvmemdb.New())

	if err := l.Record(ctx, "m1", "HOLD", "0xabc", "order-1"); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
	if _, err := l.Get(ctx, "m1"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist after rejected record, got %v", err)
	}
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	l := New(kvmemdb.New())

	markets := []string{"m1", "m2", "m3"}
	for _, m := range markets {
		if err := l.Record(ctx, m, "BUY", "0xabc", "order-"+m); err != nil {
			t.Fatal(err)
		}
	}

	seen := make(map[string]string)
	err := l.Scan(ctx, func(entry *gobs.DirectionEntry) error {
		seen[entry.MarketID] = entry.Direction
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range markets {
		if seen[m] != "BUY" {
			t.Fatalf("market %q missing from scan: %v", m, seen)
		}
	}
}

func TestLockMarket(t *testing.T) {
	l := New(kvmemdb.New())

	unlock := l.LockMarket("m1")

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		unlock2 := l.LockMarket("m1")
		close(acquired)
		unlock2()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	default:
	}

	unlock()
	wg.Wait()
	<-acquired
}
