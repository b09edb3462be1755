// Copyright (c) 2023 BVK Chaitanya

package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/kvutil"
	"github.com/bvkgo/kv"
)

const Keyspace = "/jobs/"

type JobData struct {
	UID      string
	Typename string
	Flags    uint64

	State State
}

func toGob(v *JobData) *gobs.JobData {
	if v.State == "" {
		v.State = gobs.PAUSED
	}
	return &gobs.JobData{
		UID:      v.UID,
		Typename: v.Typename,
		Flags:    v.Flags,
		State:    v.State,
	}
}

func fromGob(v *gobs.JobData) *JobData {
	if v.State == "" {
		v.State = gobs.PAUSED
	}
	return &JobData{
		UID:      v.UID,
		Typename: v.Typename,
		Flags:    v.Flags,
		State:    v.State,
	}
}

type Runner struct {
	db kv.Database

	mu sync.Mutex

	// jobMap holds all running jobs.
	jobMap map[string]*Job

	// dataMap holds metadata for all running jobs and also more jobs, like
	// completed, canceled, etc. Metadata in this map is always newer than the
	// metadata in the database.
	dataMap map[string]*JobData
}

func NewRunner(db kv.Database) *Runner {
	return &Runner{
		db:      db,
		jobMap:  make(map[string]*Job),
		dataMap: make(map[string]*JobData),
	}
}

// PauseAll stops all running jobs without changing their resumability.
func (r *Runner) PauseAll(ctx context.Context) error {
	var jobs []*Job

	r.mu.Lock()
	for uid, job := range r.jobMap {
		job.Pause()
		delete(r.jobMap, uid)
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	for _, job := range jobs {
		job.Wait(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for uid, jd := range r.dataMap {
		if !IsDone(jd.State) {
			jd.State = gobs.PAUSED
		}
		if err := r.setLocked(ctx, nil, uid, jd); err != nil {
			return fmt.Errorf("could not sync metadata for job %q: %w", uid, err)
		}
	}
	return nil
}

func (r *Runner) wrapJobFunc(uid string, fn Func) Func {
	return func(ctx context.Context) error {
		status := fn(ctx)
		log.Printf("job %q has returned with status: %v", uid, status)

		r.mu.Lock()
		defer r.mu.Unlock()

		if _, ok := r.jobMap[uid]; ok {
			jd := r.dataMap[uid]
			jd.State = finalState(ctx, status)
			delete(r.jobMap, uid)

			if err := r.setLocked(ctx, nil, uid, jd); err != nil {
				log.Printf("could not save final state of job %q (ignored): %v", uid, err)
			}
		}
		return status
	}
}

// Get returns a job's information. A nil reader uses the runner's database.
func (r *Runner) Get(ctx context.Context, reader kv.Reader, uid string) (*JobData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jd, err := r.getLocked(ctx, reader, uid)
	if err != nil {
		return nil, fmt.Errorf("could not load job data: %w", err)
	}
	return jd, nil
}

func (r *Runner) getLocked(ctx context.Context, reader kv.Reader, uid string) (*JobData, error) {
	jd, ok := r.dataMap[uid]
	if ok {
		if job, ok := r.jobMap[uid]; ok {
			jd.State = job.state()
		}
		return jd, nil
	}

	key := path.Join(Keyspace, uid)
	var gjd *gobs.JobData
	var err error
	if reader != nil {
		gjd, err = kvutil.Get[gobs.JobData](ctx, reader, key)
	} else {
		gjd, err = kvutil.GetDB[gobs.JobData](ctx, r.db, key)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read job data from db: %w", err)
	}

	jd = fromGob(gjd)
	r.dataMap[uid] = jd
	return jd, nil
}

func (r *Runner) setLocked(ctx context.Context, writer kv.ReadWriter, uid string, jd *JobData) error {
	key := path.Join(Keyspace, uid)
	var err error
	if writer != nil {
		err = kvutil.Set(ctx, writer, key, toGob(jd))
	} else {
		err = kvutil.SetDB(ctx, r.db, key, toGob(jd))
	}
	if err != nil {
		return fmt.Errorf("could not update metadata for job %q: %w", uid, err)
	}
	// Database is synced with the latest version, so we can drop the in-memory
	// data for non-running jobs.
	if _, ok := r.jobMap[uid]; !ok {
		delete(r.dataMap, uid)
	}
	return nil
}

// Add creates a new job in the database. Jobs are created in PAUSED state and
// must be resumed to begin execution. A nil writer uses the runner's database.
func (r *Runner) Add(ctx context.Context, writer kv.ReadWriter, uid, typename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.getLocked(ctx, writer, uid); err == nil || !errors.Is(err, os.ErrNotExist) {
		if err == nil {
			return fmt.Errorf("job with uid already exists: %w", os.ErrExist)
		}
		return fmt.Errorf("could not check if uid already exists: %w", err)
	}

	jd := &JobData{
		UID:      uid,
		Typename: typename,
		State:    gobs.PAUSED,
	}
	if err := r.setLocked(ctx, writer, uid, jd); err != nil {
		return fmt.Errorf("could not save new job entry: %w", err)
	}
	return nil
}

// Remove deletes a job from the database. Running jobs cannot be removed.
func (r *Runner) Remove(ctx context.Context, writer kv.ReadWriter, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobMap[uid]; ok {
		return fmt.Errorf("running job %q cannot be removed", uid)
	}

	remove := func(ctx context.Context, rw kv.ReadWriter) error {
		key := path.Join(Keyspace, uid)
		if err := rw.Delete(ctx, key); err != nil {
			return fmt.Errorf("could not delete key %q: %w", key, err)
		}
		return nil
	}
	if writer != nil {
		if err := remove(ctx, writer); err != nil {
			return err
		}
	} else {
		if err := kv.WithReadWriter(ctx, r.db, remove); err != nil {
			return err
		}
	}
	delete(r.dataMap, uid)
	return nil
}

// Scan invokes the callback function with all jobs defined in the database.
func (r *Runner) Scan(ctx context.Context, reader kv.Reader, fn func(ctx context.Context, r kv.Reader, item *JobData) error) error {
	begin, end := kvutil.PathRange(Keyspace)
	cb := func(ctx context.Context, _ kv.Reader, key string, value *gobs.JobData) error {
		uid := strings.TrimPrefix(key, Keyspace)

		r.mu.Lock()
		jd, ok := r.dataMap[uid]
		if ok {
			if job, ok := r.jobMap[uid]; ok {
				jd.State = job.state()
			}
		}
		r.mu.Unlock()

		if jd == nil {
			jd = fromGob(value)
		}
		return fn(ctx, reader, jd)
	}
	if reader != nil {
		return kvutil.Ascend(ctx, reader, begin, end, cb)
	}
	return kvutil.AscendDB(ctx, r.db, begin, end, cb)
}

// Resume runs a job. Job must not be already running or in a final state. The
// job function receives a context derived from fctx.
func (r *Runner) Resume(ctx context.Context, uid string, fn Func, fctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobMap[uid]; ok {
		return fmt.Errorf("job %q is already resumed: %w", uid, os.ErrExist)
	}

	jd, err := r.getLocked(ctx, nil, uid)
	if err != nil {
		return fmt.Errorf("could not load job data for %q: %w", uid, err)
	}

	if IsDone(jd.State) {
		return fmt.Errorf("job %q is already finalized", uid)
	}

	job := Run(r.wrapJobFunc(uid, fn), fctx)
	r.jobMap[uid] = job

	jd.State = gobs.RUNNING
	if err := r.setLocked(ctx, nil, uid, jd); err != nil {
		log.Printf("could not update job state in the db (ignored): %v", err)
	}
	return nil
}

// Pause stops a running job. Job can be resumed later.
func (r *Runner) Pause(ctx context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobMap[uid]; ok {
		job.Pause()
		r.mu.Unlock()
		job.Wait(ctx)
		r.mu.Lock()
	}

	jd, err := r.getLocked(ctx, nil, uid)
	if err != nil {
		return fmt.Errorf("could not load job state: %w", err)
	}
	if !IsDone(jd.State) {
		jd.State = gobs.PAUSED
	}
	if err := r.setLocked(ctx, nil, uid, jd); err != nil {
		return fmt.Errorf("could not mark job %q as paused: %w", uid, err)
	}
	return nil
}

// Cancel stops the job if it is running and marks it as canceled. Job cannot
// be resumed after it is canceled.
func (r *Runner) Cancel(ctx context.Context, uid string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobMap[uid]; ok {
		job.Cancel()
		r.mu.Unlock()
		job.Wait(ctx)
		r.mu.Lock()
	}

	jd, err := r.getLocked(ctx, nil, uid)
	if err != nil {
		return "", fmt.Errorf("could not load job state: %w", err)
	}
	if !IsDone(jd.State) {
		jd.State = gobs.CANCELED
	}
	if err := r.setLocked(ctx, nil, uid, jd); err != nil {
		return "", fmt.Errorf("could not mark job %q as canceled: %w", uid, err)
	}
	return jd.State, nil
}
