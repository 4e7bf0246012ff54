package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/HerbHall/peeringmanager/internal/testutil"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memStore is an in-memory Store enforcing forward-only transitions.
type memStore struct {
	mu   sync.Mutex
	next int64
	jobs map[string]*models.JobResult

	// startErr, when set, fails StartJob the way a locked or closed
	// database would.
	startErr func(ctx context.Context) error
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*models.JobResult)}
}

func (s *memStore) CreateJob(_ context.Context, name string, objType models.ContentType, userID *string) (*models.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	j := &models.JobResult{
		ID: s.next, Name: name, ObjType: objType, UserID: userID,
		Status: models.JobStatusPending, Created: time.Now(), JobID: fmt.Sprintf("job-%d", s.next),
	}
	s.jobs[j.JobID] = j
	cp := *j
	return &cp, nil
}

func (s *memStore) StartJob(ctx context.Context, jobID string) (*models.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		if err := s.startErr(ctx); err != nil {
			return nil, err
		}
	}
	j := s.jobs[jobID]
	if j.Status != models.JobStatusPending {
		return nil, errors.New("invalid transition")
	}
	j.Status = models.JobStatusRunning
	cp := *j
	return &cp, nil
}

func (s *memStore) FinishJob(_ context.Context, jobID string, status models.JobStatus, data any) (*models.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[jobID]
	if j.Status.IsTerminal() {
		return nil, errors.New("invalid transition")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	j.Status, j.Data, j.Completed = status, raw, &now
	cp := *j
	return &cp, nil
}

func (s *memStore) get(jobID string) models.JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[jobID]
}

func waitTerminal(t *testing.T, s *memStore, jobID string) models.JobResult {
	t.Helper()
	var j models.JobResult
	require.Eventually(t, func() bool {
		j = s.get(jobID)
		return j.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return j
}

func TestRunner_status_from_outcome(t *testing.T) {
	tests := []struct {
		name string
		fn   Func
		want models.JobStatus
	}{
		{
			name: "success",
			fn:   func(context.Context) (any, error) { return map[string]int{"sessions": 3}, nil },
			want: models.JobStatusCompleted,
		},
		{
			name: "failed outcome",
			fn:   func(context.Context) (any, error) { return nil, fmt.Errorf("no diff: %w", ErrFailed) },
			want: models.JobStatusFailed,
		},
		{
			name: "error",
			fn:   func(context.Context) (any, error) { return nil, errors.New("connection refused") },
			want: models.JobStatusErrored,
		},
		{
			name: "panic",
			fn:   func(context.Context) (any, error) { panic("boom") },
			want: models.JobStatusErrored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			r := NewRunner(store, nil, 2, nil)
			defer r.Stop(context.Background())

			job, err := r.Submit(context.Background(), Spec{Name: tt.name, ObjType: models.ContentTypeInternetExchange}, tt.fn)
			require.NoError(t, err)
			assert.Equal(t, models.JobStatusPending, job.Status)

			done := waitTerminal(t, store, job.JobID)
			assert.Equal(t, tt.want, done.Status)
			assert.NotNil(t, done.Completed)
		})
	}
}

func TestRunner_publishes_transitions(t *testing.T) {
	store := newMemStore()
	bus := testutil.NewMockBus()
	r := NewRunner(store, bus, 1, nil)

	job, err := r.Submit(context.Background(), Spec{Name: "deploy"}, func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	waitTerminal(t, store, job.JobID)
	require.NoError(t, r.Stop(context.Background()))

	var statuses []models.JobStatus
	for _, e := range bus.Events() {
		statuses = append(statuses, e.Payload.(models.JobResult).Status)
	}
	assert.Equal(t, []string{models.TopicJobCreated, models.TopicJobUpdated, models.TopicJobUpdated}, bus.Topics())
	assert.Equal(t, []models.JobStatus{models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted}, statuses)
}

func TestRunner_bounds_concurrency(t *testing.T) {
	store := newMemStore()
	r := NewRunner(store, nil, 2, nil)

	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})
	fn := func(context.Context) (any, error) {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return nil, nil
	}

	var ids []string
	for i := range 5 {
		job, err := r.Submit(context.Background(), Spec{Name: fmt.Sprintf("job %d", i)}, fn)
		require.NoError(t, err)
		ids = append(ids, job.JobID)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	for _, id := range ids {
		waitTerminal(t, store, id)
	}
	require.NoError(t, r.Stop(context.Background()))

	assert.LessOrEqual(t, peak, 2)
}

func TestRunner_stop_cancels_work(t *testing.T) {
	store := newMemStore()
	r := NewRunner(store, nil, 1, nil)

	started := make(chan struct{})
	job, err := r.Submit(context.Background(), Spec{Name: "long"}, func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, models.JobStatusErrored, store.get(job.JobID).Status)

	_, err = r.Submit(context.Background(), Spec{Name: "late"}, func(context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRunner_start_failure_finishes_job(t *testing.T) {
	store := newMemStore()
	store.startErr = func(context.Context) error { return errors.New("database is locked") }
	r := NewRunner(store, nil, 1, nil)

	ran := false
	job, err := r.Submit(context.Background(), Spec{Name: "deploy ams-ix"}, func(context.Context) (any, error) {
		ran = true
		return nil, nil
	})
	require.NoError(t, err)

	got := waitTerminal(t, store, job.JobID)
	assert.Equal(t, models.JobStatusErrored, got.Status)
	assert.Contains(t, string(got.Data), "database is locked")
	require.NoError(t, r.Stop(context.Background()))
	assert.False(t, ran)
}

func TestRunner_stop_leaves_no_pending_jobs(t *testing.T) {
	store := newMemStore()
	// A store bound to the runner context refuses the transition once Stop
	// cancels it.
	store.startErr = func(ctx context.Context) error { return ctx.Err() }
	r := NewRunner(store, nil, 1, nil)

	started := make(chan struct{})
	first, err := r.Submit(context.Background(), Spec{Name: "deploy ams-ix"}, func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	<-started

	var queued []*models.JobResult
	for i := range 5 {
		j, err := r.Submit(context.Background(), Spec{Name: fmt.Sprintf("queued %d", i)}, func(context.Context) (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
		queued = append(queued, j)
	}

	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, models.JobStatusErrored, store.get(first.JobID).Status)
	for _, j := range queued {
		got := store.get(j.JobID)
		assert.True(t, got.Status.IsTerminal(), "%s left %s", got.Name, got.Status)
	}
}
