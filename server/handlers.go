// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/gateway"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/kvutil"
	"github.com/shirou/gopsutil/v4/process"
)

// HandlerMap returns the http handlers for the control api. Callers install
// them on their http server.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.TargetAddPath:    jsonHandler(s.doTargetAdd),
		api.TargetRemovePath: jsonHandler(s.doTargetRemove),
		api.TargetListPath:   jsonHandler(s.doTargetList),

		api.StrategyGetPath: jsonHandler(s.doStrategyGet),
		api.StrategySetPath: jsonHandler(s.doStrategySet),

		api.JobListPath:   jsonHandler(s.doJobList),
		api.JobPausePath:  jsonHandler(s.doJobPause),
		api.JobResumePath: jsonHandler(s.doJobResume),
		api.JobCancelPath: jsonHandler(s.doJobCancel),

		api.ExecutionsListPath: jsonHandler(s.doExecutionsList),
		api.LedgerListPath:     jsonHandler(s.doLedgerList),

		api.StatusPath: jsonHandler(s.doStatus),
	}
}

// jsonHandler adapts a request/response function into a http handler with
// json bodies. Not-found style errors map to 404, invalid inputs to 400 and
// everything else to 500.
func jsonHandler[REQ, RESP any](fn func(context.Context, *REQ) (*RESP, error)) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "api requests must use POST", http.StatusMethodNotAllowed)
			return
		}
		req := new(REQ)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := fn(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, os.ErrNotExist):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, os.ErrExist), errors.Is(err, os.ErrInvalid):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
	return http.HandlerFunc(handler)
}

func (s *Server) doStrategyGet(ctx context.Context, req *api.StrategyGetRequest) (*api.StrategyGetResponse, error) {
	v, err := s.strategyStore.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &api.StrategyGetResponse{Strategy: v}, nil
}

func (s *Server) doStrategySet(ctx context.Context, req *api.StrategySetRequest) (*api.StrategySetResponse, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid strategy set request: %w", err)
	}
	if err := s.strategyStore.Set(ctx, req.Strategy); err != nil {
		return nil, err
	}
	return &api.StrategySetResponse{}, nil
}

func (s *Server) doExecutionsList(ctx context.Context, req *api.ExecutionsListRequest) (*api.ExecutionsListResponse, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid executions list request: %w", err)
	}
	resp := new(api.ExecutionsListResponse)
	collect := func(r *gobs.ExecutionRecord) error {
		resp.Executions = append(resp.Executions, r)
		return nil
	}
	if err := gateway.ScanExecutions(ctx, s.db, req.Begin, req.End, collect); err != nil {
		return nil, fmt.Errorf("could not scan execution records: %w", err)
	}
	return resp, nil
}

func (s *Server) doLedgerList(ctx context.Context, req *api.LedgerListRequest) (*api.LedgerListResponse, error) {
	resp := new(api.LedgerListResponse)
	collect := func(entry *gobs.DirectionEntry) error {
		resp.Entries = append(resp.Entries, entry)
		return nil
	}
	if err := s.ledger.Scan(ctx, collect); err != nil {
		return nil, fmt.Errorf("could not scan ledger: %w", err)
	}
	return resp, nil
}

func (s *Server) doStatus(ctx context.Context, req *api.StatusRequest) (*api.StatusResponse, error) {
	resp := &api.StatusResponse{
		Pid:           os.Getpid(),
		StartTime:     s.startTime,
		NumGoroutines: runtime.NumGoroutine(),
	}

	state, err := kvutil.GetDB[gobs.ServerState](ctx, s.db, ServerStateKey)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not read server state: %w", err)
	}
	if state != nil {
		resp.HeartbeatTime = state.HeartbeatTime
		resp.NumHeartbeats = state.NumHeartbeats
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if v, err := proc.CPUPercentWithContext(ctx); err == nil {
			resp.CPUPercent = v
		}
		if v, err := proc.MemoryPercentWithContext(ctx); err == nil {
			resp.MemoryPercent = v
		}
	}

	targets, err := s.doTargetList(ctx, &api.TargetListRequest{})
	if err != nil {
		return nil, err
	}
	resp.Targets = targets.Targets
	return resp, nil
}
