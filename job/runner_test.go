// Copyright (c) 2025 BVK Chaitanya

package job

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/bvk/copybot/gobs"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
)

func TestRunnerLifecycle(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	runner := NewRunner(db)
	defer runner.PauseAll(ctx)

	if err := runner.Add(ctx, nil, "1", "CopierState"); err != nil {
		t.Fatal(err)
	}
	if err := runner.Add(ctx, nil, "1", "OtherJob"); err == nil || !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist, got %v", err)
	}

	if jd, err := runner.Get(ctx, nil, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != gobs.PAUSED {
		t.Fatalf("wanted PAUSED, got %v", jd.State)
	}

	ch := make(chan error)
	jobFunc := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err := <-ch:
			return err
		}
	}

	if err := runner.Resume(ctx, "1", jobFunc, ctx); err != nil {
		t.Fatal(err)
	}

	if jd, err := runner.Get(ctx, nil, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != gobs.RUNNING {
		t.Fatalf("wanted RUNNING, got %v", jd.State)
	}

	if err := runner.Pause(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if jd, err := runner.Get(ctx, nil, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != gobs.PAUSED {
		t.Fatalf("wanted PAUSED, got %v", jd.State)
	}

	if err := runner.Resume(ctx, "1", jobFunc, ctx); err != nil {
		t.Fatal(err)
	}

	// Cancel a running job.
	if _, err := runner.Cancel(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if jd, err := runner.Get(ctx, nil, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != gobs.CANCELED {
		t.Fatalf("wanted CANCELED, got %v", jd.State)
	}

	if err := runner.Resume(ctx, "1", jobFunc, ctx); err == nil {
		t.Fatalf("wanted non-nil, got %v", err)
	}
}

func TestRunnerCancelPaused(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	runner := NewRunner(db)
	defer runner.PauseAll(ctx)

	if err := runner.Add(ctx, nil, "1", "CopierState"); err != nil {
		t.Fatal(err)
	}

	ch := make(chan error)
	jobFunc := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err := <-ch:
			return err
		}
	}

	if err := runner.Resume(ctx, "1", jobFunc, ctx); err != nil {
		t.Fatal(err)
	}
	if err := runner.Pause(ctx, "1"); err != nil {
		t.Fatal(err)
	}

	// Cancel a PAUSED job.
	if _, err := runner.Cancel(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if jd, err := runner.Get(ctx, nil, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != gobs.CANCELED {
		t.Fatalf("wanted CANCELED, got %v", jd.State)
	}

	if err := runner.Resume(ctx, "1", jobFunc, ctx); err == nil {
		t.Fatalf("wanted non-nil, got %v", err)
	}
}

func TestRunnerScan(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	runner := NewRunner(db)
	defer runner.PauseAll(ctx)

	uids := []string{"1", "2", "3"}
	for _, uid := range uids {
		if err := runner.Add(ctx, nil, uid, "CopierState"); err != nil {
			t.Fatal(err)
		}
	}

	seen := make(map[string]State)
	scanf := func(ctx context.Context, _ kv.Reader, jd *JobData) error {
		seen[jd.UID] = jd.State
		return nil
	}
	if err := runner.Scan(ctx, nil, scanf); err != nil {
		t.Fatal(err)
	}

	if len(seen) != len(uids) {
		t.Fatalf("wanted %d jobs, got %d", len(uids), len(seen))
	}
	for _, uid := range uids {
		if state, ok := seen[uid]; !ok || state != gobs.PAUSED {
			t.Fatalf("job %q: wanted PAUSED, got %v (found=%v)", uid, state, ok)
		}
	}
}
