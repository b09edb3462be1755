// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestGetTrades(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/trades", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user") != "0xabc" {
			http.Error(w, "bad user", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `[
  {"proxyWallet":"0xabc","side":"BUY","asset":"123","conditionId":"0xcond","size":"10.5","price":"0.42","timestamp":1700000000,"title":"Test market","slug":"test-market","outcome":"Yes","transactionHash":"0xhash1"},
  {"proxyWallet":"0xabc","side":"SELL","asset":"456","conditionId":"0xcond2","size":"3","price":"0.9","timestamp":1700000100,"title":"Other","slug":"other","outcome":"No","transactionHash":"0xhash2"}
]`)
	})
	s := httptest.NewServer(mux)
	defer s.Close()

	surl, _ := url.Parse(s.URL)
	c, err := New(&Options{DataAPIURL: surl})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	trades, err := c.GetTrades(ctx, "0xabc", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 2 {
		t.Fatalf("want 2 trades, got %d", len(trades))
	}
	first := trades[0]
	if first.ID != "0xhash1" || first.MarketID != "0xcond" || first.TokenID != "123" {
		t.Fatalf("unexpected trade identifiers: %+v", first)
	}
	if first.Side != SideBuy {
		t.Fatalf("want side %q, got %q", SideBuy, first.Side)
	}
	if !first.Time.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected trade time %v", first.Time)
	}
	if want := "4.41"; first.Notional().String() != want {
		t.Fatalf("want notional %s, got %s", want, first.Notional())
	}
}

func TestGetTradesMalformed(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/trades", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"proxyWallet":"0xabc","side":"HOLD","asset":"123","conditionId":"0xcond","size":"1","price":"0.5","timestamp":1700000000,"transactionHash":"0xhash"}]`)
	})
	s := httptest.NewServer(mux)
	defer s.Close()

	surl, _ := url.Parse(s.URL)
	c, err := New(&Options{DataAPIURL: surl})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.GetTrades(ctx, "0xabc", 10); err == nil {
		t.Fatal("want error for unexpected trade side")
	}
}

func TestGetMarket(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"conditionId":"0xcond","slug":"test-market","question":"Will it?","liquidityNum":"12345.67","active":true,"closed":false,"clobTokenIds":"[\"111\",\"222\"]","orderMinSize":"5","orderPriceMinTickSize":"0.01"}]`)
	})
	s := httptest.NewServer(mux)
	defer s.Close()

	surl, _ := url.Parse(s.URL)
	c, err := New(&Options{GammaAPIURL: surl})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	m, err := c.GetMarket(ctx, "0xcond")
	if err != nil {
		t.Fatal(err)
	}
	if m.ConditionID != "0xcond" || !m.Active || m.Closed {
		t.Fatalf("unexpected market: %+v", m)
	}
	if len(m.TokenIDs) != 2 || m.TokenIDs[0] != "111" || m.TokenIDs[1] != "222" {
		t.Fatalf("unexpected token ids: %v", m.TokenIDs)
	}
	if m.TickSize.String() != "0.01" {
		t.Fatalf("unexpected tick size %s", m.TickSize)
	}
}

func TestIsTerminal(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&StatusError{StatusCode: http.StatusBadRequest}, true},
		{&StatusError{StatusCode: http.StatusUnauthorized}, true},
		{&StatusError{StatusCode: http.StatusTooManyRequests}, false},
		{&StatusError{StatusCode: http.StatusRequestTimeout}, false},
		{&StatusError{StatusCode: http.StatusBadGateway}, false},
		{fmt.Errorf("connection refused"), false},
		{fmt.Errorf("wrapped: %w", &StatusError{StatusCode: http.StatusNotFound}), true},
	}
	for i, c := range cases {
		if v := IsTerminal(c.err); v != c.want {
			t.Errorf("case %d: IsTerminal(%v) = %t, want %t", i, c.err, v, c.want)
		}
	}
}
