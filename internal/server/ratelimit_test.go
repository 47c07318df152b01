// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vecscope-dev/vecscope/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     server.RateLimitConfig
		wantErr bool
	}{
		{"disabled", server.RateLimitConfig{}, false},
		{"valid", server.RateLimitConfig{RequestsPerSecond: 10, Burst: 20}, false},
		{"rate without burst", server.RateLimitConfig{RequestsPerSecond: 10}, true},
		{"negative rate", server.RateLimitConfig{RequestsPerSecond: -1}, true},
		{"negative visitors", server.RateLimitConfig{MaxVisitors: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateLimit_EnforcedPerIP(t *testing.T) {
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2},
	})
	require.NoError(t, err)

	get := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, get("10.0.0.1:2222"), "same IP on a new port shares the bucket")
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1:3333"))

	// A different IP gets its own bucket.
	assert.Equal(t, http.StatusOK, get("10.0.0.2:1111"))
}
