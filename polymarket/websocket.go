// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bvk/copybot/ctxutil"
	"github.com/bvk/copybot/syncmap"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

// PriceUpdate is the last trade price observed for an outcome token.
type PriceUpdate struct {
	TokenID string
	Price   decimal.Decimal
	Time    time.Time
}

// PriceFeed subscribes to the market channel websocket and tracks the last
// trade price of watched outcome tokens. The feed reconnects automatically
// with backoff; subscriptions survive reconnects.
type PriceFeed struct {
	lifeCtx    context.Context
	lifeCancel context.CancelCauseFunc

	wg sync.WaitGroup

	opts Options

	mu       sync.Mutex
	tokenIDs map[string]struct{}

	// resubCh nudges the connection loop to resend the subscription.
	resubCh chan struct{}

	priceMap syncmap.Map[string, *PriceUpdate]

	priceTopic *topic.Topic[*PriceUpdate]
}

// NewPriceFeed creates a price feed. Watch must be called to start tracking
// tokens; the feed holds no subscriptions initially.
func NewPriceFeed(opts *Options) (*PriceFeed, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	lifeCtx, lifeCancel := context.WithCancelCause(context.Background())
	f := &PriceFeed{
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		opts:       *opts,
		tokenIDs:   make(map[string]struct{}),
		resubCh:    make(chan struct{}, 1),
		priceTopic: topic.New[*PriceUpdate](),
	}

	f.wg.Add(1)
	go f.goWatchPrices(f.lifeCtx)
	return f, nil
}

// Close releases resources and destroys the price feed.
func (f *PriceFeed) Close() error {
	f.lifeCancel(os.ErrClosed)
	f.wg.Wait()
	f.priceTopic.Close()
	return nil
}

// Watch adds outcome tokens to the subscription set.
func (f *PriceFeed) Watch(tokenIDs ...string) {
	f.mu.Lock()
	for _, id := range tokenIDs {
		f.tokenIDs[id] = struct{}{}
	}
	f.mu.Unlock()

	select {
	case f.resubCh <- struct{}{}:
	default:
	}
}

// LastPrice returns the most recent trade price for the token, if any.
func (f *PriceFeed) LastPrice(tokenID string) (*PriceUpdate, bool) {
	return f.priceMap.Load(tokenID)
}

// Updates returns a receiver for price update notifications. Callers must
// close the receiver when done.
func (f *PriceFeed) Updates() (*topic.Receiver[*PriceUpdate], error) {
	return topic.Subscribe(f.priceTopic, 1, true)
}

func (f *PriceFeed) goWatchPrices(ctx context.Context) {
	defer f.wg.Done()

	for i := 0; ctx.Err() == nil; i = min(i+1, 5) {
		if err := f.watchPrices(ctx); err != nil {
			slog.Warn("could not watch prices over websocket (may retry)", "err", err)
			ctxutil.Sleep(ctx, time.Second<<i)
		}
	}
}

type subscribeMessage struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

type marketEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
}

func (f *PriceFeed) watchPrices(ctx context.Context) (status error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer func() {
		if status != nil {
			cancel(status)
		} else {
			cancel(os.ErrClosed)
		}
	}()

	dialer := websocket.Dialer{
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(ctx, f.opts.WebsocketURL.String(), nil)
	if err != nil {
		slog.Error("could not dial to websocket feed", "err", err)
		return err
	}
	defer conn.Close()

	if err := f.subscribe(conn); err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()

		for ctx.Err() == nil {
			msg, err := f.readMessage(ctx, conn)
			if err != nil {
				cancel(err)
				return
			}
			f.handleMessage(msg)
		}
	}()

	// Resend the subscription whenever the watch set changes, and ping
	// periodically to keep the socket alive.
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)

		case <-f.resubCh:
			if err := f.subscribe(conn); err != nil {
				return err
			}

		case <-time.After(30 * time.Second):
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				slog.Error("websocket ping failed; reopening new socket", "err", err)
				return err
			}
		}
	}
	return context.Cause(ctx)
}

func (f *PriceFeed) subscribe(conn *websocket.Conn) error {
	f.mu.Lock()
	ids := make([]string, 0, len(f.tokenIDs))
	for id := range f.tokenIDs {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	return conn.WriteJSON(&subscribeMessage{AssetIDs: ids, Type: "market"})
}

func (f *PriceFeed) readMessage(ctx context.Context, conn *websocket.Conn) (json.RawMessage, error) {
	stopc := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
		close(stopc)
	})

	_, msg, err := conn.ReadMessage()
	if !stop() {
		<-stopc
		conn.SetReadDeadline(time.Time{})
		return nil, context.Cause(ctx)
	}
	if err != nil {
		slog.Error("could not read websocket message", "err", err)
		return nil, err
	}
	return json.RawMessage(msg), nil
}

func (f *PriceFeed) handleMessage(msg json.RawMessage) {
	// The market channel batches events into arrays; single events arrive
	// as bare objects.
	var events []*marketEvent
	if err := json.Unmarshal(msg, &events); err != nil {
		event := new(marketEvent)
		if err := json.Unmarshal(msg, event); err != nil {
			slog.Warn("could not unmarshal websocket message (ignored)", "err", err)
			return
		}
		events = append(events, event)
	}

	for _, event := range events {
		if event.EventType != "last_trade_price" {
			continue
		}
		price, err := decimal.NewFromString(event.Price)
		if err != nil {
			slog.Warn("could not parse price in websocket event (ignored)", "price", event.Price, "err", err)
			continue
		}
		update := &PriceUpdate{
			TokenID: event.AssetID,
			Price:   price,
			Time:    time.Now(),
		}
		f.priceMap.Store(event.AssetID, update)
		f.priceTopic.Send(update)
	}
}
