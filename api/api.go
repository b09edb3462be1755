// Copyright (c) 2025 BVK Chaitanya

// Package api defines the http control surface shared by the copybot
// server and its client subcommands.
package api

import (
	"time"

	"github.com/bvk/copybot/gobs"
)

const (
	TargetAddPath    = "/copybot/target/add"
	TargetRemovePath = "/copybot/target/remove"
	TargetListPath   = "/copybot/target/list"

	StrategyGetPath = "/copybot/strategy/get"
	StrategySetPath = "/copybot/strategy/set"

	JobListPath   = "/copybot/job/list"
	JobPausePath  = "/copybot/job/pause"
	JobResumePath = "/copybot/job/resume"
	JobCancelPath = "/copybot/job/cancel"

	ExecutionsListPath = "/copybot/executions/list"
	LedgerListPath     = "/copybot/ledger/list"

	StatusPath = "/copybot/status"
)

type TargetAddRequest struct {
	// Wallet is the target trader's proxy wallet address.
	Wallet string

	// Name optionally assigns a human-readable name to the copier job.
	Name string
}

type TargetAddResponse struct {
	UID string
}

type TargetRemoveRequest struct {
	UID string
}

type TargetRemoveResponse struct {
	FinalState string
}

type TargetListRequest struct {
}

type TargetListResponseItem struct {
	UID    string
	Name   string
	Wallet string
	State  string

	NumTrades  int64
	NumCopied  int64
	NumSkipped int64
	NumFailed  int64

	LastTradeTime time.Time
}

type TargetListResponse struct {
	Targets []*TargetListResponseItem
}

type StrategyGetRequest struct {
}

type StrategyGetResponse struct {
	Strategy *gobs.Strategy
}

type StrategySetRequest struct {
	Strategy *gobs.Strategy
}

type StrategySetResponse struct {
}

type JobListRequest struct {
}

type JobListResponseItem struct {
	UID   string
	Type  string
	State string
	Name  string
}

type JobListResponse struct {
	Jobs []*JobListResponseItem
}

type JobPauseRequest struct {
	UID string
}

type JobPauseResponse struct {
	FinalState string
}

type JobResumeRequest struct {
	UID string
}

type JobResumeResponse struct {
	FinalState string
}

type JobCancelRequest struct {
	UID string
}

type JobCancelResponse struct {
	FinalState string
}

type ExecutionsListRequest struct {
	// Begin and End bound the records by time. Zero values mean unbounded.
	Begin time.Time
	End   time.Time
}

type ExecutionsListResponse struct {
	Executions []*gobs.ExecutionRecord
}

type LedgerListRequest struct {
}

type LedgerListResponse struct {
	Entries []*gobs.DirectionEntry
}

type StatusRequest struct {
}

type StatusResponse struct {
	Pid int

	StartTime     time.Time
	HeartbeatTime time.Time
	NumHeartbeats int64

	CPUPercent    float64
	MemoryPercent float32
	NumGoroutines int

	Targets []*TargetListResponseItem
}
