// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"fmt"
	"net/url"
	"time"
)

type Options struct {
	// DataAPIURL is the public data-api endpoint serving per-wallet trade
	// history and positions.
	DataAPIURL *url.URL

	// GammaAPIURL is the market metadata endpoint.
	GammaAPIURL *url.URL

	// ClobURL is the exchange endpoint for balances and order submission.
	ClobURL *url.URL

	// WebsocketURL is the market-channel subscription endpoint.
	WebsocketURL *url.URL

	HttpClientTimeout time.Duration

	// MaxRequestsPerSecond rate-limits all outgoing http calls.
	MaxRequestsPerSecond float64

	// MarketCacheTTL bounds the age of cached market metadata.
	MarketCacheTTL time.Duration
}

func (v *Options) setDefaults() {
	if v.DataAPIURL == nil {
		v.DataAPIURL = &url.URL{Scheme: "https", Host: "data-api.polymarket.com"}
	}
	if v.GammaAPIURL == nil {
		v.GammaAPIURL = &url.URL{Scheme: "https", Host: "gamma-api.polymarket.com"}
	}
	if v.ClobURL == nil {
		v.ClobURL = &url.URL{Scheme: "https", Host: "clob.polymarket.com"}
	}
	if v.WebsocketURL == nil {
		v.WebsocketURL = &url.URL{Scheme: "wss", Host: "ws-subscriptions-clob.polymarket.com", Path: "/ws/market"}
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 10 * time.Second
	}
	if v.MaxRequestsPerSecond == 0 {
		v.MaxRequestsPerSecond = 10
	}
	if v.MarketCacheTTL == 0 {
		v.MarketCacheTTL = 5 * time.Minute
	}
}

func (v *Options) Check() error {
	if v.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("max requests per second cannot be negative")
	}
	return nil
}
