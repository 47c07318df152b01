// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package vecstore_test

import (
	"testing"

	"github.com/vecscope-dev/vecscope/internal/vecstore"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Valid(t *testing.T) {
	for _, s := range []vecstore.JobStatus{
		vecstore.JobStatusPending,
		vecstore.JobStatusProcessing,
		vecstore.JobStatusPaused,
		vecstore.JobStatusCompleted,
		vecstore.JobStatusFailed,
		vecstore.JobStatusCancelled,
	} {
		assert.True(t, s.Valid(), "status %q", s)
	}

	assert.False(t, vecstore.JobStatus("running").Valid())
	assert.False(t, vecstore.JobStatus("").Valid())
}

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		status vecstore.JobStatus
		want   bool
	}{
		{vecstore.JobStatusPending, false},
		{vecstore.JobStatusProcessing, false},
		{vecstore.JobStatusPaused, false},
		{vecstore.JobStatusCompleted, true},
		{vecstore.JobStatusFailed, true},
		{vecstore.JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Terminal())
		})
	}
}
