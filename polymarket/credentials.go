// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"fmt"
)

// Credentials hold the derived CLOB api key set. The key set is created
// externally (with the exchange's key-derivation endpoint) and authorizes
// order submission for the funder address.
type Credentials struct {
	// Address is the funder (proxy wallet) address.
	Address string `json:"address"`

	ApiKey     string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

func (v *Credentials) Check() error {
	if len(v.Address) == 0 {
		return fmt.Errorf("funder address cannot be empty")
	}
	if len(v.ApiKey) == 0 || len(v.Secret) == 0 || len(v.Passphrase) == 0 {
		return fmt.Errorf("api key, secret and passphrase cannot be empty")
	}
	return nil
}
