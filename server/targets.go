// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/copier"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/job"
	"github.com/bvk/copybot/namer"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
)

// doTargetAdd creates a copier job for a new target wallet and starts it
// immediately.
func (s *Server) doTargetAdd(ctx context.Context, req *api.TargetAddRequest) (*api.TargetAddResponse, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid target add request: %w", err)
	}

	// Refuse a second copier for the same wallet.
	var dup string
	collect := func(c *copier.Copier) {
		if c.Wallet() == req.Wallet {
			dup = c.UID()
		}
	}
	if err := s.scanCopiers(ctx, collect); err != nil {
		return nil, err
	}
	if len(dup) != 0 {
		return nil, fmt.Errorf("wallet %q is already watched by job %q: %w", req.Wallet, dup, os.ErrExist)
	}

	uid := uuid.New().String()
	c, err := copier.New(uid, req.Wallet)
	if err != nil {
		return nil, err
	}

	create := func(ctx context.Context, rw kv.ReadWriter) error {
		if err := c.Save(ctx, rw); err != nil {
			return err
		}
		if err := s.runner.Add(ctx, rw, uid, CopierTypename); err != nil {
			return err
		}
		if len(req.Name) != 0 {
			if err := namer.SetName(ctx, rw, req.Name, uid, CopierTypename); err != nil {
				return fmt.Errorf("could not assign name %q: %w", req.Name, err)
			}
		}
		return nil
	}
	if err := kv.WithReadWriter(ctx, s.db, create); err != nil {
		return nil, fmt.Errorf("could not create copier job: %w", err)
	}

	if err := s.runner.Resume(ctx, uid, s.makeJobFunc(uid), s.closeCtx); err != nil {
		return nil, fmt.Errorf("could not start copier job %q: %w", uid, err)
	}
	slog.Info("added copy target", "uid", uid, "wallet", req.Wallet, "name", req.Name)

	return &api.TargetAddResponse{UID: uid}, nil
}

// doTargetRemove cancels the copier job for a target wallet. The copier
// state and its execution history stay in the database.
func (s *Server) doTargetRemove(ctx context.Context, req *api.TargetRemoveRequest) (*api.TargetRemoveResponse, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid target remove request: %w", err)
	}

	uid := req.UID
	if _, err := uuid.Parse(uid); err != nil {
		// Not an uuid; try resolving it as a name.
		_, id, _, err := namer.ResolveDB(ctx, s.db, uid)
		if err != nil {
			return nil, fmt.Errorf("could not resolve target %q: %w", req.UID, err)
		}
		uid = id
	}

	state, err := s.runner.Cancel(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("could not cancel copier job %q: %w", uid, err)
	}
	slog.Info("removed copy target", "uid", uid, "state", state)

	return &api.TargetRemoveResponse{FinalState: string(state)}, nil
}

func (s *Server) doTargetList(ctx context.Context, req *api.TargetListRequest) (*api.TargetListResponse, error) {
	resp := new(api.TargetListResponse)

	collect := func(ctx context.Context, r kv.Reader, jd *job.JobData) error {
		if jd.Typename != CopierTypename {
			return nil
		}

		item := &api.TargetListResponseItem{
			UID:   jd.UID,
			State: string(jd.State),
		}
		if name, _, _, err := namer.Resolve(ctx, r, jd.UID); err == nil {
			item.Name = name
		}

		// Prefer the live instance; its counters are ahead of the last save.
		var state *gobs.CopierState
		if c, ok := s.copierMap.Load(jd.UID); ok {
			state = c.Status()
		} else if c, err := copier.Load(ctx, jd.UID, r); err == nil {
			state = c.Status()
		} else {
			return fmt.Errorf("could not load copier %q: %w", jd.UID, err)
		}

		item.Wallet = state.Wallet
		item.NumTrades = state.NumTrades
		item.NumCopied = state.NumCopied
		item.NumSkipped = state.NumSkipped
		item.NumFailed = state.NumFailed
		item.LastTradeTime = state.LastTradeTime

		resp.Targets = append(resp.Targets, item)
		return nil
	}
	scan := func(ctx context.Context, r kv.Reader) error {
		return s.runner.Scan(ctx, r, collect)
	}
	if err := kv.WithReader(ctx, s.db, scan); err != nil {
		return nil, fmt.Errorf("could not scan copier jobs: %w", err)
	}
	return resp, nil
}

func (s *Server) scanCopiers(ctx context.Context, fn func(*copier.Copier)) error {
	scan := func(ctx context.Context, r kv.Reader) error {
		cs, err := copier.LoadAll(ctx, r)
		if err != nil {
			return err
		}
		for _, c := range cs {
			fn(c)
		}
		return nil
	}
	if err := kv.WithReader(ctx, s.db, scan); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not scan copiers: %w", err)
	}
	return nil
}
