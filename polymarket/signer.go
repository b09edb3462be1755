// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Signer produces the signed order payload the exchange expects. Wallet key
// custody and the signature scheme live entirely behind this interface; the
// rest of the system never sees a private key.
type Signer interface {
	SignOrder(ctx context.Context, req *OrderRequest) (json.RawMessage, error)
}

// HTTPSigner delegates order signing to a sidecar service over http. The
// sidecar holds the wallet key and returns the signed order object ready
// for submission.
type HTTPSigner struct {
	signerURL *url.URL

	client http.Client
}

// NewHTTPSigner creates a signer backed by the service at signerURL.
func NewHTTPSigner(signerURL *url.URL) (*HTTPSigner, error) {
	if signerURL == nil {
		return nil, fmt.Errorf("signer url cannot be nil")
	}
	s := &HTTPSigner{
		signerURL: signerURL,
		client: http.Client{
			Timeout: 10 * time.Second,
		},
	}
	return s, nil
}

type signRequest struct {
	ClientOrderID string `json:"client_order_id"`
	TokenID       string `json:"token_id"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	Price         string `json:"price"`
	Type          string `json:"type"`
}

func (s *HTTPSigner) SignOrder(ctx context.Context, req *OrderRequest) (json.RawMessage, error) {
	body, err := json.Marshal(&signRequest{
		ClientOrderID: req.ClientOrderID,
		TokenID:       req.TokenID,
		Side:          req.Side,
		Size:          req.Size.String(),
		Price:         req.Price.String(),
		Type:          req.Type,
	})
	if err != nil {
		return nil, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.signerURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read signer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: string(data)}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("signer returned invalid json")
	}
	return json.RawMessage(data), nil
}
