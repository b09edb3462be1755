// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/bvk/copybot/ctxutil"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client is a read-only client for the public data-api and gamma endpoints.
// It requires no credentials; wallet trade history and positions on
// Polymarket are public information.
type Client struct {
	lifeCtx    context.Context
	lifeCancel context.CancelCauseFunc

	opts Options

	client http.Client

	limiter *rate.Limiter
}

// New returns a new client instance.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	lifeCtx, lifeCancel := context.WithCancelCause(context.Background())
	c := &Client{
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		opts:       *opts,
		client: http.Client{
			Timeout: opts.HttpClientTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.MaxRequestsPerSecond), 1),
	}
	return c, nil
}

// Close releases resources and destroys the client instance.
func (c *Client) Close() error {
	c.lifeCancel(os.ErrClosed)
	return nil
}

type tradeResponse struct {
	ProxyWallet     string          `json:"proxyWallet"`
	Side            string          `json:"side"`
	Asset           string          `json:"asset"`
	ConditionID     string          `json:"conditionId"`
	Size            decimal.Decimal `json:"size"`
	Price           decimal.Decimal `json:"price"`
	Timestamp       int64           `json:"timestamp"`
	Title           string          `json:"title"`
	Slug            string          `json:"slug"`
	Outcome         string          `json:"outcome"`
	TransactionHash string          `json:"transactionHash"`
}

// GetTrades fetches the most recent fills of the given wallet, newest first.
func (c *Client) GetTrades(ctx context.Context, wallet string, limit int) ([]*Trade, error) {
	values := make(url.Values)
	values.Set("user", wallet)
	values.Set("limit", strconv.Itoa(limit))
	values.Set("takerOnly", "true")

	addrURL := &url.URL{
		Scheme:   c.opts.DataAPIURL.Scheme,
		Host:     c.opts.DataAPIURL.Host,
		Path:     path.Join(c.opts.DataAPIURL.Path, "/trades"),
		RawQuery: values.Encode(),
	}

	var rs []*tradeResponse
	if err := httpGetJSON(ctx, c, addrURL, &rs); err != nil {
		return nil, fmt.Errorf("could not fetch trades for wallet %q: %w", wallet, err)
	}

	var trades []*Trade
	for _, r := range rs {
		if len(r.TransactionHash) == 0 || len(r.ConditionID) == 0 {
			return nil, fmt.Errorf("trade entry has no transaction hash or condition id: %w", os.ErrInvalid)
		}
		if r.Side != SideBuy && r.Side != SideSell {
			return nil, fmt.Errorf("trade entry has unexpected side %q: %w", r.Side, os.ErrInvalid)
		}
		trades = append(trades, &Trade{
			ID:       r.TransactionHash,
			Wallet:   r.ProxyWallet,
			MarketID: r.ConditionID,
			TokenID:  r.Asset,
			Side:     r.Side,
			Size:     r.Size,
			Price:    r.Price,
			Outcome:  r.Outcome,
			Title:    r.Title,
			Slug:     r.Slug,
			Time:     time.Unix(r.Timestamp, 0).UTC(),
		})
	}
	return trades, nil
}

type positionResponse struct {
	Asset       string          `json:"asset"`
	ConditionID string          `json:"conditionId"`
	Size        decimal.Decimal `json:"size"`
	AvgPrice    decimal.Decimal `json:"avgPrice"`
	Outcome     string          `json:"outcome"`
	Slug        string          `json:"slug"`
}

// GetPositions fetches the open outcome-token positions of the given wallet.
func (c *Client) GetPositions(ctx context.Context, wallet string) ([]*Position, error) {
	values := make(url.Values)
	values.Set("user", wallet)

	addrURL := &url.URL{
		Scheme:   c.opts.DataAPIURL.Scheme,
		Host:     c.opts.DataAPIURL.Host,
		Path:     path.Join(c.opts.DataAPIURL.Path, "/positions"),
		RawQuery: values.Encode(),
	}

	var rs []*positionResponse
	if err := httpGetJSON(ctx, c, addrURL, &rs); err != nil {
		return nil, fmt.Errorf("could not fetch positions for wallet %q: %w", wallet, err)
	}

	var positions []*Position
	for _, r := range rs {
		positions = append(positions, &Position{
			MarketID: r.ConditionID,
			TokenID:  r.Asset,
			Size:     r.Size,
			AvgPrice: r.AvgPrice,
			Outcome:  r.Outcome,
			Slug:     r.Slug,
		})
	}
	return positions, nil
}

type valueResponse struct {
	User  string          `json:"user"`
	Value decimal.Decimal `json:"value"`
}

// GetPortfolioValue fetches the total USD value of a wallet's positions.
func (c *Client) GetPortfolioValue(ctx context.Context, wallet string) (decimal.Decimal, error) {
	values := make(url.Values)
	values.Set("user", wallet)

	addrURL := &url.URL{
		Scheme:   c.opts.DataAPIURL.Scheme,
		Host:     c.opts.DataAPIURL.Host,
		Path:     path.Join(c.opts.DataAPIURL.Path, "/value"),
		RawQuery: values.Encode(),
	}

	var rs []*valueResponse
	if err := httpGetJSON(ctx, c, addrURL, &rs); err != nil {
		return decimal.Zero, fmt.Errorf("could not fetch portfolio value for wallet %q: %w", wallet, err)
	}
	if len(rs) == 0 {
		return decimal.Zero, nil
	}
	return rs[0].Value, nil
}

type marketResponse struct {
	ConditionID     string          `json:"conditionId"`
	Slug            string          `json:"slug"`
	Question        string          `json:"question"`
	Liquidity       decimal.Decimal `json:"liquidityNum"`
	Active          bool            `json:"active"`
	Closed          bool            `json:"closed"`
	ClobTokenIDs    string          `json:"clobTokenIds"`
	OrderMinSize    decimal.Decimal `json:"orderMinSize"`
	OrderMinTick    decimal.Decimal `json:"orderPriceMinTickSize"`
}

// GetMarket fetches metadata for a single market from the gamma api.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*Market, error) {
	values := make(url.Values)
	values.Set("condition_ids", conditionID)

	addrURL := &url.URL{
		Scheme:   c.opts.GammaAPIURL.Scheme,
		Host:     c.opts.GammaAPIURL.Host,
		Path:     path.Join(c.opts.GammaAPIURL.Path, "/markets"),
		RawQuery: values.Encode(),
	}

	var rs []*marketResponse
	if err := httpGetJSON(ctx, c, addrURL, &rs); err != nil {
		return nil, fmt.Errorf("could not fetch market %q: %w", conditionID, err)
	}
	if len(rs) == 0 {
		return nil, fmt.Errorf("market %q: %w", conditionID, os.ErrNotExist)
	}
	r := rs[0]

	// Token ids come as a json-encoded string array.
	var tokenIDs []string
	if len(r.ClobTokenIDs) != 0 {
		if err := json.Unmarshal([]byte(r.ClobTokenIDs), &tokenIDs); err != nil {
			return nil, fmt.Errorf("could not decode token ids for market %q: %w", conditionID, err)
		}
	}

	return &Market{
		ConditionID:  r.ConditionID,
		Slug:         r.Slug,
		Question:     r.Question,
		LiquidityUSD: r.Liquidity,
		Active:       r.Active,
		Closed:       r.Closed,
		TokenIDs:     tokenIDs,
		MinOrderSize: r.OrderMinSize,
		TickSize:     r.OrderMinTick,
		FetchTime:    time.Now(),
	}, nil
}

// SortTrades orders trades by ascending (time, id).
func SortTrades(trades []*Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].Time.Equal(trades[j].Time) {
			return trades[i].Time.Before(trades[j].Time)
		}
		return trades[i].ID < trades[j].ID
	})
}

func httpGetJSON[PT *T, T any](ctx context.Context, c *Client, addrURL *url.URL, responsePtr PT) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addrURL.String(), nil)
	if err != nil {
		slog.Error("could not create http get request with context", "url", addrURL, "err", err)
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not perform http get request", "url", addrURL, "err", err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if body, err := io.ReadAll(io.LimitReader(resp.Body, 512)); err == nil {
			msg = string(body)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			timeout := time.Second
			if x := resp.Header.Get("Retry-After"); len(x) != 0 {
				if v, err := strconv.Atoi(x); err == nil {
					timeout = time.Duration(v) * time.Second
				}
			}
			ctxutil.Sleep(ctx, timeout)
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			return httpGetJSON(ctx, c, addrURL, responsePtr)
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(responsePtr); err != nil {
		return fmt.Errorf("could not json-decode response: %w", err)
	}
	return nil
}
