// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vecscope-dev/vecscope/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vecscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7700", cfg.Server.Listen)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "127.0.0.1:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "none", cfg.Embedding.Default)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.QueryDebounce())
	assert.Equal(t, 800*time.Millisecond, cfg.Search.FilterDebounce())
	assert.Equal(t, 5*time.Second, cfg.Jobs.PollInterval())
	assert.Equal(t, time.Second, cfg.Jobs.ActivePollInterval())
	assert.Equal(t, 5*time.Minute, cfg.Cache.EmbeddingTTL())
	assert.Equal(t, 100, cfg.Cache.EmbeddingCapacity)
	assert.Equal(t, 150*time.Millisecond, cfg.Cache.AttributeDebounce())
	assert.False(t, cfg.DefaultEmbedding().Configured())
}

func TestLoad_FileOverridesAndProviderIdentity(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: 0.0.0.0:9000
store:
  backend: sqlite
  sqlite:
    path: /tmp/vs.db
embedding:
  default: openai
providers:
  openai:
    model: text-embedding-3-small
    api_key: sk-test
    dimensions: 512
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "sqlite", cfg.Store.Backend)

	emb := cfg.DefaultEmbedding()
	require.True(t, emb.Configured())
	assert.Equal(t, "openai", emb.Provider, "provider identity comes from the map key")
	assert.Equal(t, "text-embedding-3-small", emb.Model)
	assert.Equal(t, 512, emb.Dimensions)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "unknown backend",
			content: "store:\n  backend: postgres\n",
			wantMsg: "store.backend",
		},
		{
			name:    "bad listen",
			content: "server:\n  listen: not-an-address\n",
			wantMsg: "server.listen",
		},
		{
			name:    "port out of range",
			content: "server:\n  listen: 127.0.0.1:70000\n",
			wantMsg: "between 1 and 65535",
		},
		{
			name:    "unconfigured default provider",
			content: "embedding:\n  default: openai\n",
			wantMsg: "embedding.default",
		},
		{
			name:    "zero debounce",
			content: "search:\n  query_debounce_ms: 0\n",
			wantMsg: "search.query_debounce_ms",
		},
		{
			name:    "active interval above base",
			content: "jobs:\n  poll_interval_ms: 500\n  active_poll_interval_ms: 1000\n",
			wantMsg: "active_poll_interval_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
