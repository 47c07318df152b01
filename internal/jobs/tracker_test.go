// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package jobs_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vecscope-dev/vecscope/internal/jobs"
	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobService struct {
	mu         sync.Mutex
	jobs       map[string]*vecstore.Job
	listErr    error
	cancelErr  error
	pauseErr   error
	cancelled  []string
	logEntries []vecstore.ImportLogEntry
	logFetches int
}

func newFakeJobService() *fakeJobService {
	return &fakeJobService{jobs: make(map[string]*vecstore.Job)}
}

func (f *fakeJobService) put(job vecstore.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := job
	f.jobs[job.ID] = &j
}

func (f *fakeJobService) CreateImportJob(context.Context, string, vecstore.ImportRequest) (*vecstore.Job, error) {
	panic("not used")
}

func (f *fakeJobService) ListJobs(context.Context, string) ([]*vecstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*vecstore.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		copied := *j
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeJobService) GetJob(_ context.Context, id string) (*vecstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		copied := *j
		return &copied, nil
	}
	return nil, vserr.New(vserr.CodeJobNotFound, "no such job")
}

func (f *fakeJobService) PauseJob(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauseErr
}

func (f *fakeJobService) ResumeJob(context.Context, string) error { return nil }

func (f *fakeJobService) CancelJob(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return f.cancelErr
}

func (f *fakeJobService) ImportLog(context.Context, string, int) ([]vecstore.ImportLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logFetches++
	return append([]vecstore.ImportLogEntry(nil), f.logEntries...), nil
}

func job(id string, status vecstore.JobStatus, createdAt time.Time) vecstore.Job {
	return vecstore.Job{ID: id, VectorSet: "photos", Status: status, Total: 10, CreatedAt: createdAt}
}

func TestTracker_PollSurfacesJobsNewestFirst(t *testing.T) {
	svc := newFakeJobService()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.put(job("older", vecstore.JobStatusPending, base))
	svc.put(job("newer", vecstore.JobStatusPending, base.Add(time.Minute)))

	tr := jobs.NewTracker(svc, "photos", slog.Default())
	require.NoError(t, tr.Poll(context.Background()))

	listed := tr.Jobs()
	require.Len(t, listed, 2)
	assert.Equal(t, "newer", listed[0].ID)
	assert.Equal(t, "older", listed[1].ID)
}

func TestTracker_DismissIsLocalIdempotentAndPermanent(t *testing.T) {
	svc := newFakeJobService()
	svc.put(job("j1", vecstore.JobStatusProcessing, time.Now()))
	svc.put(job("j2", vecstore.JobStatusPending, time.Now()))

	tr := jobs.NewTracker(svc, "photos", slog.Default())
	require.NoError(t, tr.Poll(context.Background()))
	require.Len(t, tr.Jobs(), 2)

	tr.Dismiss("j1")
	tr.Dismiss("j1")
	require.Len(t, tr.Jobs(), 1)
	assert.Empty(t, svc.cancelled, "dismiss never reaches the remote API")

	// Remote status changes do not resurrect a dismissed job.
	svc.put(job("j1", vecstore.JobStatusCompleted, time.Now()))
	require.NoError(t, tr.Poll(context.Background()))
	listed := tr.Jobs()
	require.Len(t, listed, 1)
	assert.Equal(t, "j2", listed[0].ID)
}

func TestTracker_IntervalAdaptsToProcessing(t *testing.T) {
	svc := newFakeJobService()
	tr := jobs.NewTracker(svc, "photos", slog.Default())

	assert.Equal(t, jobs.DefaultPollInterval, tr.Interval())

	svc.put(job("j1", vecstore.JobStatusProcessing, time.Now()))
	require.NoError(t, tr.Poll(context.Background()))
	assert.Equal(t, jobs.DefaultActivePollInterval, tr.Interval())

	// A dismissed processing job does not count.
	tr.Dismiss("j1")
	assert.Equal(t, jobs.DefaultPollInterval, tr.Interval())

	// Paused and terminal jobs do not count either.
	svc.put(job("j2", vecstore.JobStatusPaused, time.Now()))
	svc.put(job("j3", vecstore.JobStatusCompleted, time.Now()))
	require.NoError(t, tr.Poll(context.Background()))
	assert.Equal(t, jobs.DefaultPollInterval, tr.Interval())
}

func TestTracker_CompletionTransitionIsOneShot(t *testing.T) {
	svc := newFakeJobService()
	svc.put(job("j1", vecstore.JobStatusProcessing, time.Now()))

	tr := jobs.NewTracker(svc, "photos", slog.Default())
	require.NoError(t, tr.Poll(context.Background()))

	svc.put(job("j1", vecstore.JobStatusCompleted, time.Now()))
	require.NoError(t, tr.Poll(context.Background()))

	var finished, statusChanged int
	for drained := false; !drained; {
		select {
		case ev := <-tr.Events():
			switch ev.Type {
			case jobs.EventJobFinished:
				finished++
				assert.Equal(t, "j1", ev.Job.ID)
			case jobs.EventJobStatusChanged:
				statusChanged++
			}
		default:
			drained = true
		}
	}
	assert.Equal(t, 1, finished)
	assert.Equal(t, 1, statusChanged)

	// The finished transition refreshes the import history.
	svc.mu.Lock()
	fetches := svc.logFetches
	svc.mu.Unlock()
	assert.Equal(t, 1, fetches)

	// Re-observing the completed job emits nothing further.
	require.NoError(t, tr.Poll(context.Background()))
	select {
	case ev := <-tr.Events():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestTracker_FirstObservationEmitsNoEvents(t *testing.T) {
	svc := newFakeJobService()
	svc.put(job("j1", vecstore.JobStatusCompleted, time.Now()))

	tr := jobs.NewTracker(svc, "photos", slog.Default())
	require.NoError(t, tr.Poll(context.Background()))

	select {
	case ev := <-tr.Events():
		t.Fatalf("unexpected event %v for already-completed job", ev)
	default:
	}
}

func TestTracker_ForceCleanupSwallowsCancelError(t *testing.T) {
	svc := newFakeJobService()
	svc.put(job("j1", vecstore.JobStatusProcessing, time.Now()))
	svc.cancelErr = vserr.New(vserr.CodeStoreRequestFailure, "connection reset")

	tr := jobs.NewTracker(svc, "photos", slog.Default())
	require.NoError(t, tr.Poll(context.Background()))

	tr.ForceCleanup(context.Background(), "j1")

	assert.Equal(t, []string{"j1"}, svc.cancelled, "remote cancel is still attempted")
	assert.Empty(t, tr.Jobs(), "dismissal applies even when the cancel fails")
}

func TestTracker_RemoteActionErrorsCarryJobActionCode(t *testing.T) {
	svc := newFakeJobService()
	svc.pauseErr = vserr.New(vserr.CodeStoreRequestFailure, "down")

	tr := jobs.NewTracker(svc, "photos", slog.Default())
	err := tr.Pause(context.Background(), "j1")
	require.Error(t, err)
	assert.True(t, vserr.HasCode(err, vserr.CodeJobActionFailure))
}

func TestTracker_PollFailurePreservesLastView(t *testing.T) {
	svc := newFakeJobService()
	svc.put(job("j1", vecstore.JobStatusProcessing, time.Now()))

	tr := jobs.NewTracker(svc, "photos", slog.Default())
	require.NoError(t, tr.Poll(context.Background()))

	svc.mu.Lock()
	svc.listErr = vserr.New(vserr.CodeStoreRequestFailure, "down")
	svc.mu.Unlock()

	require.Error(t, tr.Poll(context.Background()))
	assert.Error(t, tr.Err())
	assert.Len(t, tr.Jobs(), 1, "a failed poll keeps the previous snapshot")
}
