// Copyright (c) 2025 BVK Chaitanya

// Package gateway owns order submission. It serializes per-market order
// placement across copiers, re-checks the direction ledger under the market
// lock, retries transient exchange failures a bounded number of times and
// records every attempt in the execution log. The ledger is written only
// after the exchange accepts an order.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/copybot/ctxutil"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/kvutil"
	"github.com/bvk/copybot/ledger"
	"github.com/bvk/copybot/polymarket"
	"github.com/bvk/copybot/sizer"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"github.com/visvasity/topic"
)

const Keyspace = "/executions/"

// maxSubmitAttempts bounds retries of transient submission failures within
// a single trade. Terminal exchange rejections are never retried.
const maxSubmitAttempts = 3

// Request describes one replica order to place.
type Request struct {
	// Trade is the observed target trade being copied.
	Trade *polymarket.Trade

	// Decision is the sizing outcome for the trade.
	Decision *sizer.Decision

	// CopierUID identifies the copier job placing the order.
	CopierUID string

	// TokenID is the outcome token to trade.
	TokenID string

	// DryRun logs and records the order without submitting it.
	DryRun bool
}

// Result is the outcome of a submission attempt. Skipped results carry a
// reason; all other results carry the execution record.
type Result struct {
	Skipped bool
	Reason  string

	Record *gobs.ExecutionRecord
}

// Gateway submits replica orders to the exchange.
type Gateway struct {
	db kv.Database

	ledger *ledger.Ledger

	exchange polymarket.Exchange

	execTopic *topic.Topic[*gobs.ExecutionRecord]
}

// New creates a gateway. The exchange may be nil only if every strategy
// keeps DryRun set.
func New(db kv.Database, l *ledger.Ledger, exchange polymarket.Exchange) *Gateway {
	return &Gateway{
		db:        db,
		ledger:    l,
		exchange:  exchange,
		execTopic: topic.New[*gobs.ExecutionRecord](),
	}
}

func (g *Gateway) Close() error {
	g.execTopic.Close()
	return nil
}

// Executions returns a receiver for execution record notifications.
func (g *Gateway) Executions() (*topic.Receiver[*gobs.ExecutionRecord], error) {
	return topic.Subscribe(g.execTopic, 0, true)
}

// Submit places one replica order. The per-market lock is held across the
// ledger re-check and the exchange call, so two copiers racing on the same
// market cannot both pass the direction check.
func (g *Gateway) Submit(ctx context.Context, req *Request) (*Result, error) {
	t, d := req.Trade, req.Decision
	if t == nil || d == nil || d.Skip {
		return nil, fmt.Errorf("submit needs a trade and a non-skip decision: %w", os.ErrInvalid)
	}

	unlock := g.ledger.LockMarket(t.MarketID)
	defer unlock()

	// Another copier may have taken this direction while we were sizing.
	entry, err := g.ledger.Get(ctx, t.MarketID)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not read ledger for market %q: %w", t.MarketID, err)
	}
	if entry != nil && entry.Direction == t.Side {
		return &Result{Skipped: true, Reason: sizer.SkipDirectionTaken}, nil
	}

	record := &gobs.ExecutionRecord{
		UID:           uuid.New().String(),
		CopierUID:     req.CopierUID,
		Wallet:        t.Wallet,
		MarketID:      t.MarketID,
		TokenID:       req.TokenID,
		Slug:          t.Slug,
		Outcome:       t.Outcome,
		Side:          t.Side,
		Size:          d.Size,
		Price:         d.Price,
		SourceTradeID: t.ID,
		SourceSize:    t.Size,
		SourcePrice:   t.Price,
		DryRun:        req.DryRun,
		Time:          time.Now(),
	}

	if req.DryRun {
		slog.Info("dry-run order", "market", t.MarketID, "side", t.Side, "size", d.Size, "price", d.Price)
		record.Accepted = true
		record.OrderID = "dry-run-" + record.UID
		return g.finish(ctx, record)
	}

	if t.Side == polymarket.SideBuy {
		// Buys need collateral up-front; when the balance cannot cover the
		// full order, clamp the size to what the balance affords instead of
		// dropping the trade.
		balance, err := g.exchange.GetBalance(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not fetch balance: %w", err)
		}
		if balance.LessThan(record.Size.Mul(d.Price)) {
			clamped := balance.Div(d.Price).RoundDown(2)
			if clamped.IsZero() || clamped.LessThan(d.MinSize) {
				return &Result{Skipped: true, Reason: sizer.SkipBelowMinimum}, nil
			}
			slog.Info("clamped order size to available balance",
				"market", t.MarketID, "size", record.Size, "clamped", clamped, "balance", balance)
			record.Size = clamped
		}
	}

	order := &polymarket.OrderRequest{
		ClientOrderID: record.UID,
		TokenID:       req.TokenID,
		Side:          t.Side,
		Size:          record.Size,
		Price:         d.Price,
		Type:          d.Type,
	}

	result, err := g.submitWithRetry(ctx, order)
	if err != nil {
		record.FailureReason = err.Error()
		if _, ferr := g.finish(ctx, record); ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("could not submit order for market %q: %w", t.MarketID, err)
	}

	record.Accepted = true
	record.OrderID = result.OrderID
	return g.finish(ctx, record)
}

// finish saves the execution record, updates the ledger for accepted orders
// and publishes the record for notification consumers.
func (g *Gateway) finish(ctx context.Context, record *gobs.ExecutionRecord) (*Result, error) {
	if err := kvutil.SetDB(ctx, g.db, recordKey(record), record); err != nil {
		return nil, fmt.Errorf("could not save execution record: %w", err)
	}
	if record.Accepted {
		if err := g.ledger.Record(ctx, record.MarketID, record.Side, record.Wallet, record.OrderID); err != nil {
			return nil, err
		}
	}
	g.execTopic.Send(record)
	return &Result{Record: record}, nil
}

func (g *Gateway) submitWithRetry(ctx context.Context, order *polymarket.OrderRequest) (*polymarket.OrderResult, error) {
	var last error
	for i := 0; i < maxSubmitAttempts; i++ {
		result, err := g.exchange.SubmitOrder(ctx, order)
		if err == nil {
			return result, nil
		}
		if polymarket.IsTerminal(err) {
			return nil, err
		}
		last = err
		slog.Warn("could not submit order (may retry)", "attempt", i+1, "err", err)
		ctxutil.Sleep(ctx, time.Second<<i)
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
	}
	return nil, last
}

func recordKey(record *gobs.ExecutionRecord) string {
	return Keyspace + record.Time.UTC().Format(time.RFC3339Nano) + "/" + record.UID
}

// ScanExecutions iterates over execution records within [begin, end) times.
// A zero end means no upper bound.
func ScanExecutions(ctx context.Context, db kv.Database, begin, end time.Time, fn func(*gobs.ExecutionRecord) error) error {
	return kvutil.AscendDB(ctx, db, Keyspace, Keyspace+"\xff", func(_ context.Context, _ kv.Reader, key string, record *gobs.ExecutionRecord) error {
		if record.Time.Before(begin) {
			return nil
		}
		if !end.IsZero() && !record.Time.Before(end) {
			return nil
		}
		return fn(record)
	})
}
