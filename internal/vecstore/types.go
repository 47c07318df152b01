// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package vecstore

import "time"

// Query describes one similarity search against a vector set. Exactly one of
// Vector or Element selects the anchor; an all-zero Vector with a Filter is a
// valid filter-only preview.
type Query struct {
	Vector  []float32
	Element string

	Filter string
	Count  int

	// Tuning knobs, passed through verbatim. Zero means server default.
	SearchEF        int
	FilterEF        int
	ForceLinearScan bool
	NoThread        bool

	WithVectors    bool
	WithAttributes bool
}

// Match is one ranked search hit. Vector and Attributes are populated only
// when the query asked for them.
type Match struct {
	Element    string
	Score      float64
	Vector     []float32
	Attributes string
}

// Result carries the ranked matches plus the store-side diagnostics every
// search records: the execution time the store reported (not wall clock seen
// by the caller) and the literal command it ran.
type Result struct {
	Matches          []Match
	ExecutionSeconds float64
	Command          string
}

// Neighbor is one graph edge returned by Links.
type Neighbor struct {
	Element string
	Score   float64
}

// --- Import job types ---

// JobStatus is the remote-observed lifecycle state of an import job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPaused     JobStatus = "paused"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusPaused,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the job can never change status again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is a bulk-import job as observed on the remote side. This layer never
// executes imports; it only reads and nudges this state.
type Job struct {
	ID        string
	VectorSet string
	Status    JobStatus
	Total     int
	Done      int
	Filename  string
	Metadata  map[string]string
	CreatedAt time.Time
	// PausedAt is set while Status is paused and cleared on resume.
	PausedAt *time.Time
	Error    string
}

// ImportRequest describes a bulk import to be queued remotely.
type ImportRequest struct {
	Filename  string
	Payload   []byte
	Embedding string // provider name the remote worker should embed with
}

// ImportLogEntry is one line of the import history log.
type ImportLogEntry struct {
	At      time.Time
	Set     string
	Message string
}
