// Copyright (c) 2023 BVK Chaitanya

// Package job implements an api to manage jobs. Jobs are activities that can
// be canceled, paused or resumed through the context.Context argument.
package job

import (
	"context"
	"errors"
	"sync"

	"github.com/bvk/copybot/gobs"
)

type State = gobs.JobState

type Func func(ctx context.Context) error

var (
	errPause  = errors.New("ErrPause")
	errCancel = errors.New("ErrCancel")
)

type Job struct {
	cancel context.CancelCauseFunc

	wg sync.WaitGroup

	mu sync.Mutex

	status State

	err error
}

// Run starts the job function in a background goroutine. The goroutine's
// context is canceled with a distinguishing cause when the job is paused or
// canceled.
func Run(f Func, ctx context.Context) *Job {
	jctx, jcancel := context.WithCancelCause(ctx)
	j := &Job{
		cancel: jcancel,
		status: gobs.RUNNING,
	}
	j.wg.Add(1)
	go j.goRun(jctx, f)
	return j
}

func (j *Job) goRun(ctx context.Context, f Func) {
	defer j.wg.Done()

	err := f(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
	j.status = finalState(ctx, err)
}

func finalState(ctx context.Context, err error) State {
	cause := context.Cause(ctx)
	switch {
	case err == nil:
		return gobs.COMPLETED
	case errors.Is(err, errPause) || errors.Is(cause, errPause):
		return gobs.PAUSED
	case errors.Is(err, errCancel) || errors.Is(cause, errCancel):
		return gobs.CANCELED
	default:
		return gobs.FAILED
	}
}

// Pause stops the job at the next safe point. The job can be resumed later
// with a new Run through the Runner.
func (j *Job) Pause() {
	j.cancel(errPause)
}

// Cancel stops the job permanently.
func (j *Job) Cancel() {
	j.cancel(errCancel)
}

// Wait blocks till the job goroutine returns or the input context expires.
func (j *Job) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-done:
		return nil
	}
}

// Err returns the error returned by the job function.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) state() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func IsDone(s State) bool {
	return s == gobs.COMPLETED || s == gobs.CANCELED || s == gobs.FAILED
}

func IsStopped(s State) bool {
	return s != gobs.RUNNING
}
