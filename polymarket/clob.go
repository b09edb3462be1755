// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange is the order-submission surface of the CLOB endpoint.
type Exchange interface {
	// GetBalance returns the available collateral (USDC) balance.
	GetBalance(ctx context.Context) (decimal.Decimal, error)

	// SubmitOrder submits an order and returns the exchange's response. A
	// nil error means the exchange accepted the order.
	SubmitOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
}

// OrderRequest describes a single order for the exchange.
type OrderRequest struct {
	// ClientOrderID is a caller-chosen idempotency id.
	ClientOrderID string

	// TokenID is the outcome token being bought or sold.
	TokenID string

	// Side is "BUY" or "SELL".
	Side string

	Size  decimal.Decimal
	Price decimal.Decimal

	// Type is "FOK" for immediate fills or "GTC" for resting limit orders.
	Type string
}

func (v *OrderRequest) Check() error {
	if len(v.TokenID) == 0 {
		return fmt.Errorf("token id cannot be empty")
	}
	if v.Side != SideBuy && v.Side != SideSell {
		return fmt.Errorf("side must be %q or %q", SideBuy, SideSell)
	}
	if v.Size.IsZero() || v.Size.IsNegative() {
		return fmt.Errorf("order size must be positive")
	}
	if v.Price.IsNegative() || v.Price.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("order price must be within (0, 1)")
	}
	if v.Type != "FOK" && v.Type != "GTC" {
		return fmt.Errorf("order type must be FOK or GTC")
	}
	return nil
}

// OrderResult is the exchange's response to an accepted order.
type OrderResult struct {
	OrderID string
	Status  string
}

// Clob is an authenticated client for the CLOB exchange endpoint. All
// requests carry the L2 api-key headers derived from the funder wallet.
// Order payloads are signed by an external Signer; this client only
// authenticates and posts them.
type Clob struct {
	opts Options

	creds Credentials

	signer Signer

	client http.Client
}

// NewClob creates an authenticated exchange client.
func NewClob(creds *Credentials, signer Signer, opts *Options) (*Clob, error) {
	if err := creds.Check(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	if signer == nil {
		return nil, fmt.Errorf("order signer cannot be nil")
	}
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	c := &Clob{
		opts:   *opts,
		creds:  *creds,
		signer: signer,
		client: http.Client{
			Timeout: opts.HttpClientTimeout,
		},
	}
	return c, nil
}

func (c *Clob) Close() error {
	return nil
}

// sign computes the L2 HMAC signature over timestamp+method+path+body using
// the url-safe base64 api secret.
func (c *Clob) sign(timestamp, method, requestPath string, body []byte) (string, error) {
	secret, err := base64.URLEncoding.DecodeString(c.creds.Secret)
	if err != nil {
		return "", fmt.Errorf("could not decode api secret: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(method))
	mac.Write([]byte(requestPath))
	mac.Write(body)
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (c *Clob) do(ctx context.Context, method, requestPath string, values url.Values, body []byte) ([]byte, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature, err := c.sign(timestamp, method, requestPath, body)
	if err != nil {
		return nil, err
	}

	addrURL := &url.URL{
		Scheme:   c.opts.ClobURL.Scheme,
		Host:     c.opts.ClobURL.Host,
		Path:     path.Join(c.opts.ClobURL.Path, requestPath),
		RawQuery: values.Encode(),
	}

	var reader io.Reader
	if len(body) != 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, addrURL.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_ADDRESS", c.creds.Address)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_API_KEY", c.creds.ApiKey)
	req.Header.Set("POLY_PASSPHRASE", c.creds.Passphrase)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: string(data)}
	}
	return data, nil
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

// GetBalance fetches the available collateral balance in USD. The exchange
// reports balances in USDC base units with six decimal places.
func (c *Clob) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	values := make(url.Values)
	values.Set("asset_type", "COLLATERAL")
	values.Set("signature_type", "1")

	data, err := c.do(ctx, http.MethodGet, "/balance-allowance", values, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not fetch balance: %w", err)
	}

	var r balanceResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return decimal.Zero, fmt.Errorf("could not decode balance response: %w", err)
	}
	units, err := decimal.NewFromString(r.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse balance %q: %w", r.Balance, err)
	}
	return units.Shift(-6), nil
}

type orderRequestBody struct {
	Order     json.RawMessage `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
}

type orderResponse struct {
	Success bool   `json:"success"`
	ErrMsg  string `json:"errorMsg"`
	OrderID string `json:"orderID"`
	Status  string `json:"status"`
}

// SubmitOrder submits a signed order to the exchange. Order payload signing
// is handled by the Signer; this method wraps the signed payload with the
// api-key owner and order type and posts it.
func (c *Clob) SubmitOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid order request: %w", err)
	}

	signed, err := c.signer.SignOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("could not sign order: %w", err)
	}

	body, err := json.Marshal(&orderRequestBody{
		Order:     signed,
		Owner:     c.creds.ApiKey,
		OrderType: req.Type,
	})
	if err != nil {
		return nil, err
	}

	data, err := c.do(ctx, http.MethodPost, "/order", nil, body)
	if err != nil {
		return nil, fmt.Errorf("could not submit order: %w", err)
	}

	var r orderResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("could not decode order response: %w", err)
	}
	if !r.Success {
		return nil, &StatusError{StatusCode: http.StatusBadRequest, Message: r.ErrMsg}
	}
	return &OrderResult{OrderID: r.OrderID, Status: r.Status}, nil
}
