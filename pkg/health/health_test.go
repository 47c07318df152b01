// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package health_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vecscope-dev/vecscope/pkg/health"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name       string
		components []health.Component
		want       health.State
	}{
		{"no components", nil, health.StateOK},
		{
			"all ok",
			[]health.Component{
				{Name: "store", State: health.StateOK},
				{Name: "embedding", State: health.StateOK},
			},
			health.StateOK,
		},
		{
			"degraded wins over ok",
			[]health.Component{
				{Name: "store", State: health.StateOK},
				{Name: "embedding", State: health.StateDegraded},
			},
			health.StateDegraded,
		},
		{
			"unavailable wins over degraded",
			[]health.Component{
				{Name: "store", State: health.StateUnavailable},
				{Name: "embedding", State: health.StateDegraded},
			},
			health.StateUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := health.Aggregate(tt.components...)
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Components, len(tt.components))
		})
	}
}
