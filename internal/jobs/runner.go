// Package jobs runs background work and records its lifecycle as job
// results. Every transition is published on the event bus.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// ErrFailed marks a job whose work ran to completion but reported a
// negative outcome. Wrap it to record the job as failed rather than
// errored.
var ErrFailed = errors.New("job failed")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("job runner stopped")

// Store persists job results. Implemented by the extras job result store.
type Store interface {
	CreateJob(ctx context.Context, name string, objType models.ContentType, userID *string) (*models.JobResult, error)
	StartJob(ctx context.Context, jobID string) (*models.JobResult, error)
	FinishJob(ctx context.Context, jobID string, status models.JobStatus, data any) (*models.JobResult, error)
}

// Func is the work of one job. The returned value is stored as the job's
// data.
type Func func(ctx context.Context) (any, error)

// Spec names a job and the object type it acts on.
type Spec struct {
	Name    string
	ObjType models.ContentType
	UserID  *string
}

// Runner executes jobs with bounded concurrency.
type Runner struct {
	store  Store
	bus    plugin.Publisher
	logger *zap.Logger
	sem    chan struct{}

	mu      sync.Mutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a Runner executing at most concurrency jobs at once.
// bus may be nil.
func NewRunner(store Store, bus plugin.Publisher, concurrency int, logger *zap.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:  store,
		bus:    bus,
		logger: logger,
		sem:    make(chan struct{}, concurrency),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit records a pending job and runs fn in the background. The returned
// result is the pending record.
func (r *Runner) Submit(ctx context.Context, spec Spec, fn Func) (*models.JobResult, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrStopped
	}
	r.wg.Add(1)
	r.mu.Unlock()

	job, err := r.store.CreateJob(ctx, spec.Name, spec.ObjType, spec.UserID)
	if err != nil {
		r.wg.Done()
		return nil, fmt.Errorf("create job: %w", err)
	}
	r.publish(models.TopicJobCreated, job)

	go func() {
		defer r.wg.Done()
		r.run(job.JobID, fn)
	}()
	return job, nil
}

func (r *Runner) run(jobID string, fn Func) {
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-r.ctx.Done():
		r.finish(jobID, models.JobStatusErrored, map[string]any{"error": ErrStopped.Error()})
		return
	}

	if r.ctx.Err() != nil {
		r.finish(jobID, models.JobStatusErrored, map[string]any{"error": ErrStopped.Error()})
		return
	}
	// Stop may race the transition; a pending job must still reach a
	// terminal status.
	job, err := r.store.StartJob(context.WithoutCancel(r.ctx), jobID)
	if err != nil {
		r.logger.Error("start job", zap.String("job_id", jobID), zap.Error(err))
		r.finish(jobID, models.JobStatusErrored, map[string]any{"error": fmt.Sprintf("start job: %v", err)})
		return
	}
	r.publish(models.TopicJobUpdated, job)

	data, err := r.call(fn)
	status := models.JobStatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, ErrFailed):
		status = models.JobStatusFailed
	default:
		status = models.JobStatusErrored
	}
	if err != nil {
		data = map[string]any{"error": err.Error(), "output": data}
	}
	r.finish(jobID, status, data)
}

// call runs fn, converting a panic into an error.
func (r *Runner) call(fn Func) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(r.ctx)
}

func (r *Runner) finish(jobID string, status models.JobStatus, data any) {
	// The runner context may already be cancelled during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := r.store.FinishJob(ctx, jobID, status, data)
	if err != nil {
		r.logger.Error("finish job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	r.logger.Info("job finished",
		zap.String("job_id", jobID),
		zap.String("name", job.Name),
		zap.String("status", string(job.Status)),
	)
	r.publish(models.TopicJobUpdated, job)
}

func (r *Runner) publish(topic string, job *models.JobResult) {
	if r.bus == nil {
		return
	}
	_ = r.bus.Publish(context.Background(), plugin.Event{
		Topic:     topic,
		Source:    "jobs",
		Timestamp: time.Now().UTC(),
		Payload:   *job,
	})
}

// Stop cancels running jobs and waits for them to record their outcome or
// for ctx to expire.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
