// Copyright (c) 2025 BVK Chaitanya

// Package copier runs the per-wallet replication loop. Each copier polls
// one target wallet's trade history, sizes every new trade against the
// current strategy and hands qualifying trades to the execution gateway.
// The cursor advances one trade at a time, only after that trade's outcome
// is durable, so a crash re-processes at most the unfinished tail.
package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/bvk/copybot/ctxutil"
	"github.com/bvk/copybot/feed"
	"github.com/bvk/copybot/gateway"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/kvutil"
	"github.com/bvk/copybot/ledger"
	"github.com/bvk/copybot/polymarket"
	"github.com/bvk/copybot/sizer"
	"github.com/bvk/copybot/strategy"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultKeyspace = "/copiers/"

// MarketSource resolves market metadata.
type MarketSource interface {
	GetMarket(ctx context.Context, conditionID string) (*polymarket.Market, error)
}

// PortfolioSource resolves a wallet's total position value. Only consulted
// in PORTFOLIO sizing mode.
type PortfolioSource interface {
	GetPortfolioValue(ctx context.Context, wallet string) (decimal.Decimal, error)
}

// PriceSource supplies last-trade prices from the market channel. Tokens
// must be watched before prices become available.
type PriceSource interface {
	Watch(tokenIDs ...string)
	LastPrice(tokenID string) (*polymarket.PriceUpdate, bool)
}

// Runtime carries the collaborators a copier needs while running.
type Runtime struct {
	Database kv.Database

	Source feed.Source

	Markets MarketSource

	Values PortfolioSource

	// Prices is optional; when nil market orders price off the observed
	// trade.
	Prices PriceSource

	Ledger *ledger.Ledger

	Strategy *strategy.Store

	Gateway *gateway.Gateway

	// OwnWallet is our funder address, used for portfolio-scaled sizing.
	OwnWallet string

	PollInterval time.Duration

	FetchLimit int
}

type Copier struct {
	runtimeLock sync.Mutex

	// stateLock guards state against concurrent Status reads while the run
	// loop is mutating counters.
	stateLock sync.Mutex

	uid string

	state *gobs.CopierState
}

// New creates a copier for the given target wallet with a fresh cursor.
// Only trades after the copier's creation are replicated.
func New(uid, wallet string) (*Copier, error) {
	c := &Copier{
		uid: uid,
		state: &gobs.CopierState{
			Wallet: wallet,
			Cursor: gobs.FeedCursor{Time: time.Now()},
		},
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func Load(ctx context.Context, uid string, r kv.Reader) (*Copier, error) {
	fs := strings.Split(uid, "/")
	if len(fs) == 0 {
		return nil, fmt.Errorf("uid cannot be empty")
	}
	if _, err := uuid.Parse(fs[0]); err != nil {
		return nil, fmt.Errorf("uid %q doesn't start with an uuid: %w", uid, err)
	}
	key := path.Join(DefaultKeyspace, uid)
	state, err := kvutil.Get[gobs.CopierState](ctx, r, key)
	if err != nil {
		return nil, err
	}
	c := &Copier{
		uid:   uid,
		state: state,
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Copier) Save(ctx context.Context, rw kv.ReadWriter) error {
	c.stateLock.Lock()
	clone := *c.state
	c.stateLock.Unlock()

	key := path.Join(DefaultKeyspace, c.uid)
	if err := kvutil.Set(ctx, rw, key, &clone); err != nil {
		return fmt.Errorf("could not save copier state: %w", err)
	}
	return nil
}

func (c *Copier) check() error {
	if len(c.uid) == 0 {
		return fmt.Errorf("copier uid is empty")
	}
	fs := strings.Split(c.uid, "/")
	if _, err := uuid.Parse(fs[0]); err != nil {
		return fmt.Errorf("uid %q doesn't start with an uuid: %w", c.uid, err)
	}
	if len(c.state.Wallet) == 0 {
		return fmt.Errorf("target wallet cannot be empty")
	}
	return nil
}

func (c *Copier) String() string {
	return "copier:" + c.uid
}

func (c *Copier) UID() string {
	return c.uid
}

func (c *Copier) Wallet() string {
	return c.state.Wallet
}

// Status returns a copy of the copier's counters and cursor.
func (c *Copier) Status() *gobs.CopierState {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	v := *c.state
	return &v
}

// Run is the copier's poll loop. It returns only when ctx is canceled.
// Cancellation is honored between polls and between trades, never in the
// middle of an order submission.
func (c *Copier) Run(ctx context.Context, rt *Runtime) error {
	c.runtimeLock.Lock()
	defer c.runtimeLock.Unlock()

	poller := feed.NewPoller(rt.Source, c.state.Wallet, rt.FetchLimit)

	interval := rt.PollInterval
	if interval == 0 {
		interval = 10 * time.Second
	}

	for ctx.Err() == nil {
		trades, err := poller.Poll(ctx, &c.state.Cursor)
		if err != nil {
			slog.Warn("could not poll trades (will retry)", "copier", c, "err", err)
			ctxutil.Sleep(ctx, interval)
			continue
		}

		for _, t := range trades {
			if ctx.Err() != nil {
				break
			}
			if err := c.processTrade(ctx, rt, t); err != nil {
				// Transient failure; leave the cursor so the next poll
				// retries this trade and everything after it.
				slog.Warn("could not process trade (will retry)", "copier", c, "trade", t.ID, "err", err)
				break
			}
			c.stateLock.Lock()
			feed.Advance(&c.state.Cursor, t)
			c.state.NumTrades++
			c.state.LastTradeTime = t.Time
			c.stateLock.Unlock()
			if err := kv.WithReadWriter(ctx, rt.Database, c.Save); err != nil {
				slog.Error("could not save copier state (will retry)", "copier", c, "err", err)
				break
			}
		}

		ctxutil.Sleep(ctx, interval)
	}
	return context.Cause(ctx)
}

// processTrade runs one trade through the sizing pipeline and the gateway.
// A nil return means the trade's outcome is final and the cursor may
// advance; a non-nil return means a transient failure worth retrying.
func (c *Copier) processTrade(ctx context.Context, rt *Runtime, t *polymarket.Trade) error {
	s, err := rt.Strategy.Current(ctx)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.skip(t, sizer.SkipConfigInvalid)
			return nil
		}
		return fmt.Errorf("could not read strategy: %w", err)
	}

	m, err := rt.Markets.GetMarket(ctx, t.MarketID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || polymarket.IsTerminal(err) {
			// The metadata endpoint does not know this market; treat the
			// trade as unusable rather than blocking the feed.
			slog.Error("could not resolve market for trade (dropped)", "copier", c, "trade", t.ID, "market", t.MarketID, "err", err)
			c.fail()
			return nil
		}
		return fmt.Errorf("could not fetch market %q: %w", t.MarketID, err)
	}

	in := &sizer.Input{
		Trade:    t,
		Strategy: s,
		Market:   m,
		Now:      time.Now(),
	}

	if entry, err := rt.Ledger.Get(ctx, t.MarketID); err == nil {
		in.Direction = entry.Direction
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not read ledger for market %q: %w", t.MarketID, err)
	}

	if rt.Prices != nil && (s.OrderStyle == "MARKET" || s.MaxSlippagePct.IsPositive()) {
		rt.Prices.Watch(t.TokenID)
		if pu, ok := rt.Prices.LastPrice(t.TokenID); ok && time.Since(pu.Time) < time.Minute {
			in.LastPrice = pu.Price
		}
	}

	if t.Side == polymarket.SideBuy && s.MaxOpenPositions > 0 {
		count := func(e *gobs.DirectionEntry) error {
			if e.Direction == polymarket.SideBuy {
				in.OpenPositions++
			}
			return nil
		}
		if err := rt.Ledger.Scan(ctx, count); err != nil {
			return fmt.Errorf("could not count open positions: %w", err)
		}
	}

	if s.SizingMode == "PORTFOLIO" {
		target, err := rt.Values.GetPortfolioValue(ctx, c.state.Wallet)
		if err != nil {
			return fmt.Errorf("could not fetch target portfolio value: %w", err)
		}
		own, err := rt.Values.GetPortfolioValue(ctx, rt.OwnWallet)
		if err != nil {
			return fmt.Errorf("could not fetch own portfolio value: %w", err)
		}
		in.TargetPortfolioUSD, in.OwnPortfolioUSD = target, own
	}

	decision, err := sizer.Compute(in)
	if err != nil {
		slog.Error("could not size trade (dropped)", "copier", c, "trade", t.ID, "err", err)
		c.fail()
		return nil
	}
	if decision.Skip {
		c.skip(t, decision.Reason)
		return nil
	}

	result, err := rt.Gateway.Submit(ctx, &gateway.Request{
		Trade:     t,
		Decision:  decision,
		CopierUID: c.uid,
		TokenID:   t.TokenID,
		DryRun:    s.DryRun,
	})
	if err != nil {
		if polymarket.IsTerminal(err) {
			// The gateway has already recorded the rejection.
			c.fail()
			return nil
		}
		return err
	}
	if result.Skipped {
		c.skip(t, result.Reason)
		return nil
	}

	c.stateLock.Lock()
	c.state.NumCopied++
	c.stateLock.Unlock()
	slog.Info("copied trade", "copier", c, "trade", t.ID, "market", t.MarketID,
		"side", t.Side, "size", result.Record.Size, "price", result.Record.Price,
		"order", result.Record.OrderID, "dry-run", result.Record.DryRun)
	return nil
}

func (c *Copier) skip(t *polymarket.Trade, reason string) {
	c.stateLock.Lock()
	c.state.NumSkipped++
	c.stateLock.Unlock()
	slog.Info("skipped trade", "copier", c, "trade", t.ID, "market", t.MarketID, "side", t.Side, "reason", reason)
}

func (c *Copier) fail() {
	c.stateLock.Lock()
	c.state.NumFailed++
	c.stateLock.Unlock()
}

func LoadAll(ctx context.Context, r kv.Reader) ([]*Copier, error) {
	const MinUUID = "00000000-0000-0000-0000-000000000000"
	const MaxUUID = "ffffffff-ffff-ffff-ffff-ffffffffffff"

	begin := path.Join(DefaultKeyspace, MinUUID)
	end := path.Join(DefaultKeyspace, MaxUUID)

	it, err := r.Ascend(ctx, begin, end)
	if err != nil {
		return nil, err
	}
	defer kv.Close(it)

	var copiers []*Copier
	for k, _, err := it.Fetch(ctx, false); err == nil; k, _, err = it.Fetch(ctx, true) {
		uid := strings.TrimPrefix(k, DefaultKeyspace)
		v, err := Load(ctx, uid, r)
		if err != nil {
			return nil, err
		}
		copiers = append(copiers, v)
	}

	if _, _, err := it.Fetch(ctx, false); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return copiers, nil
}
