// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Command openapi-gen writes the REST API's OpenAPI spec to disk so clients
// can be generated without starting a real server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vecscope-dev/vecscope/internal/embedding"
	"github.com/vecscope-dev/vecscope/internal/ingest"
	"github.com/vecscope-dev/vecscope/internal/jobs"
	"github.com/vecscope-dev/vecscope/internal/prefs"
	"github.com/vecscope-dev/vecscope/internal/server"
	"github.com/vecscope-dev/vecscope/internal/session"
	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	// No-op service stubs so every route is registered for schema discovery.
	// Handlers are never invoked during spec generation.
	hub := jobs.NewHub(stubJobs{}, nil)
	defer hub.Close()

	sessions := session.NewManager(func(set string, opts ...session.Option) *session.Controller {
		return session.NewController(stubStore{}, stubEmbedder{}, embedding.Config{}, set, opts...)
	})

	svc, err := server.NewServices(stubStore{}, hub, sessions, stubIngestor{},
		prefs.NewMemoryService(), embedding.Config{}, 0)
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeCLISetupFailure, "creating server")
	}
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op stubs for spec generation.

type stubStore struct{}

var _ vecstore.Store = stubStore{}

func (stubStore) SimilaritySearch(context.Context, string, vecstore.Query) (*vecstore.Result, error) {
	return &vecstore.Result{}, nil
}
func (stubStore) Cardinality(context.Context, string) (int64, error)  { return 0, nil }
func (stubStore) Dimensionality(context.Context, string) (int, error) { return 0, nil }
func (stubStore) Add(context.Context, string, string, []float32, string) error {
	return nil
}
func (stubStore) Remove(context.Context, string, string) error { return nil }
func (stubStore) Links(context.Context, string, string) ([][]vecstore.Neighbor, error) {
	return nil, nil
}
func (stubStore) GetAttribute(context.Context, string, string) (string, error) { return "", nil }
func (stubStore) GetAttributes(context.Context, string, []string) (map[string]string, error) {
	return nil, nil
}
func (stubStore) SetAttribute(context.Context, string, string, string) error { return nil }
func (stubStore) ListSets(context.Context) ([]string, error)                 { return nil, nil }
func (stubStore) Close() error                                               { return nil }

type stubJobs struct{}

var _ vecstore.JobService = stubJobs{}

func (stubJobs) CreateImportJob(context.Context, string, vecstore.ImportRequest) (*vecstore.Job, error) {
	return &vecstore.Job{}, nil
}
func (stubJobs) ListJobs(context.Context, string) ([]*vecstore.Job, error) { return nil, nil }
func (stubJobs) GetJob(context.Context, string) (*vecstore.Job, error)     { return &vecstore.Job{}, nil }
func (stubJobs) PauseJob(context.Context, string) error                    { return nil }
func (stubJobs) ResumeJob(context.Context, string) error                   { return nil }
func (stubJobs) CancelJob(context.Context, string) error                   { return nil }
func (stubJobs) ImportLog(context.Context, string, int) ([]vecstore.ImportLogEntry, error) {
	return nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedText(context.Context, string, embedding.Config) ([]float32, error) {
	return nil, nil
}

type stubIngestor struct{}

func (stubIngestor) Ingest(context.Context, string, embedding.Config, []ingest.Item) []ingest.ItemResult {
	return nil
}
