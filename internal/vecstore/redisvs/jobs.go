// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package redisvs

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// Import-job state lives in Redis next to the vector sets, under a vecscope
// prefix. The remote import worker owns progress and terminal transitions;
// this adapter creates jobs and applies the pause/resume/cancel nudges.
const (
	jobKeyPrefix     = "vecscope:job:"
	jobIndexPrefix   = "vecscope:jobs:"
	jobPayloadSuffix = ":payload"
	importLogPrefix  = "vecscope:importlog:"

	importLogCap = 512
)

func jobKey(id string) string        { return jobKeyPrefix + id }
func jobPayloadKey(id string) string { return jobKey(id) + jobPayloadSuffix }
func jobIndexKey(set string) string  { return jobIndexPrefix + set }
func importLogKey(set string) string { return importLogPrefix + set }

// CreateImportJob queues a bulk import for the remote worker and records it
// in the per-set job index.
func (s *Store) CreateImportJob(ctx context.Context, set string, req vecstore.ImportRequest) (*vecstore.Job, error) {
	job := &vecstore.Job{
		ID:        uuid.NewString(),
		VectorSet: set,
		Status:    vecstore.JobStatusPending,
		Filename:  req.Filename,
		CreatedAt: s.nowFunc().UTC(),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID), map[string]any{
		"id":         job.ID,
		"set":        job.VectorSet,
		"status":     string(job.Status),
		"total":      0,
		"done":       0,
		"filename":   job.Filename,
		"embedding":  req.Embedding,
		"created_at": job.CreatedAt.Format(time.RFC3339Nano),
	})
	pipe.SAdd(ctx, jobIndexKey(set), job.ID)
	if len(req.Payload) > 0 {
		pipe.Set(ctx, jobPayloadKey(job.ID), req.Payload, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "queueing import job",
			vserr.FieldVectorSet(set))
	}

	s.appendImportLog(ctx, set, "queued import of "+req.Filename)
	return job, nil
}

// ListJobs returns all jobs recorded for set, newest first. Dismissal is a
// tracker-local concept and does not filter here.
func (s *Store) ListJobs(ctx context.Context, set string) ([]*vecstore.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIndexKey(set)).Result()
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "listing jobs", vserr.FieldVectorSet(set))
	}

	jobs := make([]*vecstore.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.loadJob(ctx, id)
		if err != nil {
			if vserr.IsNotFound(err) {
				// Index entry outlived the job hash; drop it.
				s.client.SRem(ctx, jobIndexKey(set), id)
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*vecstore.Job, error) {
	return s.loadJob(ctx, id)
}

// PauseJob moves a processing job to paused and records when. The processing
// and paused states toggle; terminal states are never overridden.
func (s *Store) PauseJob(ctx context.Context, id string) error {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != vecstore.JobStatusProcessing {
		return vserr.New(vserr.CodeJobActionFailure,
			"can only pause a processing job, job is "+string(job.Status), vserr.FieldJobID(id))
	}

	err = s.client.HSet(ctx, jobKey(id),
		"status", string(vecstore.JobStatusPaused),
		"paused_at", s.nowFunc().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return vserr.Wrap(err, vserr.CodeJobActionFailure, "pausing job", vserr.FieldJobID(id))
	}
	return nil
}

// ResumeJob moves a paused job back to processing.
func (s *Store) ResumeJob(ctx context.Context, id string) error {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != vecstore.JobStatusPaused {
		return vserr.New(vserr.CodeJobActionFailure,
			"can only resume a paused job, job is "+string(job.Status), vserr.FieldJobID(id))
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), "status", string(vecstore.JobStatusProcessing))
	pipe.HDel(ctx, jobKey(id), "paused_at")
	if _, err := pipe.Exec(ctx); err != nil {
		return vserr.Wrap(err, vserr.CodeJobActionFailure, "resuming job", vserr.FieldJobID(id))
	}
	return nil
}

// CancelJob marks a non-terminal job cancelled. Cancelling an already
// terminal job fails; dismissal is the local way to hide those.
func (s *Store) CancelJob(ctx context.Context, id string) error {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return vserr.New(vserr.CodeJobActionFailure,
			"job already "+string(job.Status), vserr.FieldJobID(id))
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), "status", string(vecstore.JobStatusCancelled))
	pipe.HDel(ctx, jobKey(id), "paused_at")
	pipe.Del(ctx, jobPayloadKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return vserr.Wrap(err, vserr.CodeJobActionFailure, "cancelling job", vserr.FieldJobID(id))
	}

	s.appendImportLog(ctx, job.VectorSet, "cancelled import of "+job.Filename)
	return nil
}

// ImportLog returns up to limit history entries, newest first.
func (s *Store) ImportLog(ctx context.Context, set string, limit int) ([]vecstore.ImportLogEntry, error) {
	if limit <= 0 {
		limit = importLogCap
	}

	lines, err := s.client.LRange(ctx, importLogKey(set), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "reading import log", vserr.FieldVectorSet(set))
	}

	entries := make([]vecstore.ImportLogEntry, 0, len(lines))
	for _, line := range lines {
		entry := vecstore.ImportLogEntry{Set: set, Message: line}
		if ts, msg, ok := strings.Cut(line, "|"); ok {
			if at, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				entry.At = at
				entry.Message = msg
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) appendImportLog(ctx context.Context, set, message string) {
	line := s.nowFunc().UTC().Format(time.RFC3339Nano) + "|" + message
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, importLogKey(set), line)
	pipe.LTrim(ctx, importLogKey(set), 0, importLogCap-1)
	// History is best effort; a failed append must not fail the action.
	_, _ = pipe.Exec(ctx)
}

func (s *Store) loadJob(ctx context.Context, id string) (*vecstore.Job, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil && err != redis.Nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "loading job", vserr.FieldJobID(id))
	}
	if len(fields) == 0 {
		return nil, vserr.New(vserr.CodeJobNotFound, "job does not exist", vserr.FieldJobID(id))
	}

	job := &vecstore.Job{
		ID:        fields["id"],
		VectorSet: fields["set"],
		Status:    vecstore.JobStatus(fields["status"]),
		Filename:  fields["filename"],
		Error:     fields["error"],
	}
	if job.ID == "" {
		job.ID = id
	}
	job.Total, _ = strconv.Atoi(fields["total"])
	job.Done, _ = strconv.Atoi(fields["done"])
	if raw := fields["created_at"]; raw != "" {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			job.CreatedAt = at
		}
	}
	if raw := fields["paused_at"]; raw != "" {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			job.PausedAt = &at
		}
	}
	if !job.Status.Valid() {
		return nil, vserr.Errorf(vserr.CodeStoreRequestFailure, "job %s has unknown status %q", id, fields["status"])
	}
	return job, nil
}
