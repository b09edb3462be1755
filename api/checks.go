// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"fmt"
	"strings"
)

func (r *TargetAddRequest) Check() error {
	if len(r.Wallet) == 0 {
		return fmt.Errorf("target wallet cannot be empty")
	}
	if !strings.HasPrefix(r.Wallet, "0x") {
		return fmt.Errorf("target wallet must be a 0x-prefixed address")
	}
	return nil
}

func (r *TargetRemoveRequest) Check() error {
	if len(r.UID) == 0 {
		return fmt.Errorf("target uid cannot be empty")
	}
	return nil
}

func (r *StrategySetRequest) Check() error {
	if r.Strategy == nil {
		return fmt.Errorf("strategy cannot be nil")
	}
	return nil
}

func (r *ExecutionsListRequest) Check() error {
	if !r.Begin.IsZero() && !r.End.IsZero() && r.End.Before(r.Begin) {
		return fmt.Errorf("end time cannot be before begin time")
	}
	return nil
}
