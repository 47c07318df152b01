// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package vecstore

import "context"

// JobService is the consumed import-job contract. Jobs are executed by a
// remote worker; this layer creates, observes, and nudges them.
type JobService interface {
	CreateImportJob(ctx context.Context, set string, req ImportRequest) (*Job, error)
	ListJobs(ctx context.Context, set string) ([]*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)

	PauseJob(ctx context.Context, id string) error
	ResumeJob(ctx context.Context, id string) error
	CancelJob(ctx context.Context, id string) error

	ImportLog(ctx context.Context, set string, limit int) ([]ImportLogEntry, error)
}
