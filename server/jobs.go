// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/job"
	"github.com/bvk/copybot/namer"
	"github.com/bvkgo/kv"
)

// doJobPause pauses a running copier job.
func (s *Server) doJobPause(ctx context.Context, req *api.JobPauseRequest) (*api.JobPauseResponse, error) {
	if err := s.runner.Pause(ctx, req.UID); err != nil {
		return nil, fmt.Errorf("could not pause job %q: %w", req.UID, err)
	}
	jd, err := s.getJobData(ctx, req.UID)
	if err != nil {
		return nil, err
	}
	return &api.JobPauseResponse{FinalState: string(jd.State)}, nil
}

// doJobResume resumes a paused, non-final copier job.
func (s *Server) doJobResume(ctx context.Context, req *api.JobResumeRequest) (*api.JobResumeResponse, error) {
	jd, err := s.getJobData(ctx, req.UID)
	if err != nil {
		return nil, err
	}
	if job.IsDone(jd.State) {
		return nil, fmt.Errorf("job %q is already finalized", req.UID)
	}
	if err := s.runner.Resume(ctx, req.UID, s.makeJobFunc(req.UID), s.closeCtx); err != nil {
		return nil, fmt.Errorf("could not resume job %q: %w", req.UID, err)
	}
	jd, err = s.getJobData(ctx, req.UID)
	if err != nil {
		return nil, err
	}
	return &api.JobResumeResponse{FinalState: string(jd.State)}, nil
}

// doJobCancel cancels a non-final copier job, stopping it first when it is
// running.
func (s *Server) doJobCancel(ctx context.Context, req *api.JobCancelRequest) (*api.JobCancelResponse, error) {
	state, err := s.runner.Cancel(ctx, req.UID)
	if err != nil {
		return nil, fmt.Errorf("could not cancel job %q: %w", req.UID, err)
	}
	return &api.JobCancelResponse{FinalState: string(state)}, nil
}

func (s *Server) doJobList(ctx context.Context, req *api.JobListRequest) (*api.JobListResponse, error) {
	resp := new(api.JobListResponse)
	collect := func(ctx context.Context, r kv.Reader, jd *job.JobData) error {
		item := &api.JobListResponseItem{
			UID:   jd.UID,
			Type:  jd.Typename,
			State: string(jd.State),
		}
		name, _, _, err := namer.Resolve(ctx, r, jd.UID)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not resolve job id %q: %w", jd.UID, err)
		}
		item.Name = name
		resp.Jobs = append(resp.Jobs, item)
		return nil
	}
	scan := func(ctx context.Context, r kv.Reader) error {
		return s.runner.Scan(ctx, r, collect)
	}
	if err := kv.WithReader(ctx, s.db, scan); err != nil {
		return nil, fmt.Errorf("could not scan all jobs: %w", err)
	}
	return resp, nil
}

func (s *Server) getJobData(ctx context.Context, uid string) (*job.JobData, error) {
	var jd *job.JobData
	get := func(ctx context.Context, r kv.Reader) error {
		v, err := s.runner.Get(ctx, r, uid)
		if err != nil {
			return err
		}
		jd = v
		return nil
	}
	if err := kv.WithReader(ctx, s.db, get); err != nil {
		return nil, fmt.Errorf("could not get job %q data: %w", uid, err)
	}
	return jd, nil
}
