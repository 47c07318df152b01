// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package server_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_VectorsImported(t *testing.T) {
	srv, _, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", nil)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	// With the stream attached, ingest a batch and expect its event.
	body := map[string]any{
		"items": []map[string]any{{"text": "green bicycle near the lake"}},
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sets/photos/ingest", body)
	require.Equal(t, http.StatusOK, rec.Code)

	deadline := time.After(3 * time.Second)
	var sawEvent, sawCount bool
	for !(sawEvent && sawCount) {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before vectors_imported arrived")
			}
			if strings.Contains(line, "event: vectors_imported") {
				sawEvent = true
			}
			if strings.Contains(line, `"count":1`) && strings.Contains(line, `"photos"`) {
				sawCount = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for vectors_imported event")
		}
	}
}
