// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package jobs observes remote import jobs: adaptive polling, local
// dismissal, and typed completion events. Jobs are executed elsewhere; this
// layer never owns their state machine.
package jobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

const (
	// DefaultPollInterval is the idle polling cadence.
	DefaultPollInterval = 5000 * time.Millisecond
	// DefaultActivePollInterval applies while any non-dismissed job is
	// processing.
	DefaultActivePollInterval = 1000 * time.Millisecond

	// DefaultImportLogLimit bounds the history fetched on refresh.
	DefaultImportLogLimit = 50

	eventBuffer = 32
)

// EventType discriminates tracker events.
type EventType string

const (
	// EventJobStatusChanged fires when a job's observed status differs from
	// the previous poll.
	EventJobStatusChanged EventType = "job_status_changed"
	// EventJobFinished fires exactly once per job, on the transition into
	// completed.
	EventJobFinished EventType = "job_finished"
)

// Event is one typed tracker notification.
type Event struct {
	Type EventType
	Job  vecstore.Job
}

// Tracker polls a vector set's import jobs and maintains the local view:
// dismissed jobs are filtered out of every poll result permanently.
type Tracker struct {
	svc    vecstore.JobService
	set    string
	logger *slog.Logger

	pollInterval   time.Duration
	activeInterval time.Duration
	logLimit       int

	mu        sync.Mutex
	jobs      map[string]vecstore.Job
	dismissed map[string]struct{}
	importLog []vecstore.ImportLogEntry
	lastErr   error

	events chan Event
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithIntervals overrides the idle and active poll intervals (for testing).
func WithIntervals(idle, active time.Duration) Option {
	return func(t *Tracker) {
		t.pollInterval = idle
		t.activeInterval = active
	}
}

// WithImportLogLimit overrides the history fetch size.
func WithImportLogLimit(n int) Option {
	return func(t *Tracker) { t.logLimit = n }
}

func NewTracker(svc vecstore.JobService, set string, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		svc:            svc,
		set:            set,
		logger:         logger,
		pollInterval:   DefaultPollInterval,
		activeInterval: DefaultActivePollInterval,
		logLimit:       DefaultImportLogLimit,
		jobs:           make(map[string]vecstore.Job),
		dismissed:      make(map[string]struct{}),
		events:         make(chan Event, eventBuffer),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Events is the tracker's typed notification stream. Slow consumers drop
// events rather than stalling the poll loop.
func (t *Tracker) Events() <-chan Event {
	return t.events
}

// Run polls until ctx is cancelled, adapting the interval to job activity.
func (t *Tracker) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := t.Poll(ctx); err != nil && ctx.Err() == nil {
			t.logger.Warn("job poll failed", "set", t.set, "error", err)
		}
		timer.Reset(t.Interval())
	}
}

// Poll fetches the job list once and reconciles it against the local view.
func (t *Tracker) Poll(ctx context.Context) error {
	listed, err := t.svc.ListJobs(ctx, t.set)

	t.mu.Lock()
	if err != nil {
		t.lastErr = err
		t.mu.Unlock()
		return err
	}
	t.lastErr = nil

	var pending []Event
	seen := make(map[string]struct{}, len(listed))
	for _, job := range listed {
		if job == nil {
			continue
		}
		if _, gone := t.dismissed[job.ID]; gone {
			continue
		}
		seen[job.ID] = struct{}{}

		prev, known := t.jobs[job.ID]
		t.jobs[job.ID] = *job

		if known && prev.Status != job.Status {
			pending = append(pending, Event{Type: EventJobStatusChanged, Job: *job})
		}
		// The finished event is one-shot: only the transition into completed
		// fires, never a repeat observation of an already-completed job.
		if known && prev.Status != vecstore.JobStatusCompleted && job.Status == vecstore.JobStatusCompleted {
			pending = append(pending, Event{Type: EventJobFinished, Job: *job})
		}
	}
	for id := range t.jobs {
		if _, ok := seen[id]; !ok {
			delete(t.jobs, id)
		}
	}
	t.mu.Unlock()

	refreshLog := false
	for _, ev := range pending {
		if ev.Type == EventJobFinished {
			refreshLog = true
		}
		t.emit(ev)
	}
	if refreshLog {
		if err := t.RefreshImportLog(ctx); err != nil {
			t.logger.Warn("import log refresh failed", "set", t.set, "error", err)
		}
	}
	return nil
}

func (t *Tracker) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("dropping tracker event", "type", ev.Type, "job", ev.Job.ID)
	}
}

// Interval returns the current poll cadence: the active interval iff at
// least one non-dismissed job is processing.
func (t *Tracker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, job := range t.jobs {
		if job.Status == vecstore.JobStatusProcessing {
			return t.activeInterval
		}
	}
	return t.pollInterval
}

// Jobs returns the non-dismissed jobs from the last poll, newest first.
func (t *Tracker) Jobs() []vecstore.Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]vecstore.Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Err returns the error from the last poll attempt, if any.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Pause asks the remote worker to pause the job.
func (t *Tracker) Pause(ctx context.Context, id string) error {
	if err := t.svc.PauseJob(ctx, id); err != nil {
		return vserr.Wrap(err, vserr.CodeJobActionFailure, "pause failed", vserr.FieldJobID(id))
	}
	return nil
}

// Resume asks the remote worker to resume a paused job.
func (t *Tracker) Resume(ctx context.Context, id string) error {
	if err := t.svc.ResumeJob(ctx, id); err != nil {
		return vserr.Wrap(err, vserr.CodeJobActionFailure, "resume failed", vserr.FieldJobID(id))
	}
	return nil
}

// Cancel asks the remote worker to cancel the job.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	if err := t.svc.CancelJob(ctx, id); err != nil {
		return vserr.Wrap(err, vserr.CodeJobActionFailure, "cancel failed", vserr.FieldJobID(id))
	}
	return nil
}

// Dismiss hides the job locally. It never calls the remote API, is
// idempotent, and is permanent: the job is excluded from every later poll
// regardless of its remote status.
func (t *Tracker) Dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dismissed[id] = struct{}{}
	delete(t.jobs, id)
}

// ForceCleanup best-effort cancels the job remotely and dismisses it
// locally. Remote cancellation errors are swallowed; the dismissal applies
// either way.
func (t *Tracker) ForceCleanup(ctx context.Context, id string) {
	if err := t.svc.CancelJob(ctx, id); err != nil {
		t.logger.Debug("force cleanup cancel ignored", "job", id, "error", err)
	}
	t.Dismiss(id)
}

// RefreshImportLog refetches the import history.
func (t *Tracker) RefreshImportLog(ctx context.Context) error {
	entries, err := t.svc.ImportLog(ctx, t.set, t.logLimit)
	if err != nil {
		return vserr.Wrap(err, vserr.CodeJobActionFailure, "import log fetch failed")
	}

	t.mu.Lock()
	t.importLog = entries
	t.mu.Unlock()
	return nil
}

// ImportLog returns the cached import history.
func (t *Tracker) ImportLog() []vecstore.ImportLogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]vecstore.ImportLogEntry, len(t.importLog))
	copy(out, t.importLog)
	return out
}
