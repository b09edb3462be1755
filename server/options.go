// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"time"
)

type Options struct {
	// NoResume leaves previously running copier jobs paused at startup.
	NoResume bool

	// PollInterval is the delay between trade-history polls per copier.
	PollInterval time.Duration

	// FetchLimit is the page size for trade-history polls.
	FetchLimit int

	// HeartbeatInterval is the delay between liveness updates written to
	// the database.
	HeartbeatInterval time.Duration

	// BalanceCheckInterval is the delay between low-balance checks.
	BalanceCheckInterval time.Duration
}

func (v *Options) setDefaults() {
	if v.PollInterval == 0 {
		v.PollInterval = 10 * time.Second
	}
	if v.FetchLimit == 0 {
		v.FetchLimit = 100
	}
	if v.HeartbeatInterval == 0 {
		v.HeartbeatInterval = time.Minute
	}
	if v.BalanceCheckInterval == 0 {
		v.BalanceCheckInterval = 10 * time.Minute
	}
}

func (v *Options) Check() error {
	return nil
}
