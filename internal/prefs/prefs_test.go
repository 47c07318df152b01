// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package prefs_test

import (
	"context"
	"testing"

	"github.com/vecscope-dev/vecscope/internal/prefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := prefs.NewMemoryService()

	got, err := svc.Get(ctx, "last_set")
	require.NoError(t, err)
	assert.Empty(t, got, "missing keys read as empty")

	require.NoError(t, svc.Set(ctx, "last_set", "photos"))
	require.NoError(t, svc.Set(ctx, "result_count", "25"))

	got, err = svc.Get(ctx, "last_set")
	require.NoError(t, err)
	assert.Equal(t, "photos", got)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"last_set": "photos", "result_count": "25"}, all)
}

func TestMemoryService_Overwrite(t *testing.T) {
	ctx := context.Background()
	svc := prefs.NewMemoryService()

	require.NoError(t, svc.Set(ctx, "theme", "dark"))
	require.NoError(t, svc.Set(ctx, "theme", "light"))

	got, err := svc.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got)
}
