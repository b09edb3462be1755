// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bvk/copybot/polymarket"
	"github.com/bvk/copybot/pushover"
	"github.com/bvk/copybot/telegram"
)

type Secrets struct {
	Polymarket *polymarket.Credentials `json:"polymarket"`

	// SignerURL points at the order-signing sidecar. Required for live
	// trading; dry-run strategies work without it.
	SignerURL string `json:"signer_url"`

	Pushover *pushover.Keys    `json:"pushover"`
	Telegram *telegram.Secrets `json:"telegram"`
}

func SecretsFromFile(fpath string) (*Secrets, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

func (v *Secrets) Check() error {
	if v.Polymarket != nil {
		if err := v.Polymarket.Check(); err != nil {
			return err
		}
		if len(v.SignerURL) == 0 {
			return fmt.Errorf("exchange credentials need a signer url")
		}
	}
	if v.Telegram != nil {
		if err := v.Telegram.Check(); err != nil {
			return err
		}
	}
	if v.Pushover != nil {
		if err := v.Pushover.Check(); err != nil {
			return err
		}
	}
	return nil
}
