// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/vecscope-dev/vecscope/internal/config"
	"github.com/vecscope-dev/vecscope/internal/embedding"
	"github.com/vecscope-dev/vecscope/internal/ingest"
	"github.com/vecscope-dev/vecscope/internal/jobs"
	"github.com/vecscope-dev/vecscope/internal/prefs"
	"github.com/vecscope-dev/vecscope/internal/server"
	"github.com/vecscope-dev/vecscope/internal/session"
	"github.com/vecscope-dev/vecscope/internal/vecstore"
	"github.com/vecscope-dev/vecscope/internal/vecstore/redisvs"
	"github.com/vecscope-dev/vecscope/internal/vecstore/sqlitevec"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server   *server.Server
	Store    vecstore.Store
	Hub      *jobs.Hub
	Sessions *session.Manager
}

// WireApp creates all subsystems and wires them together.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	// 1. Vector store backend.
	st, jobSvc, prefSvc, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closeStore := func() { _ = st.Close() }

	// 2. Embedding registry, cache, and service.
	registry := embedding.NewRegistry()
	registerProviders(ctx, cfg, registry)
	embedSvc := embedding.NewService(registry,
		embedding.NewCache(cfg.Cache.EmbeddingTTL(), cfg.Cache.EmbeddingCapacity))

	// 3. Search sessions over the dimension-cached store view.
	searchView := searchStore{store: st, dims: vecstore.NewDimsCache(st, 0)}
	embedCfg := cfg.DefaultEmbedding()
	sessions := session.NewManager(func(set string, opts ...session.Option) *session.Controller {
		opts = append([]session.Option{
			session.WithDelays(cfg.Search.QueryDebounce(), cfg.Search.FilterDebounce()),
		}, opts...)
		return session.NewController(searchView, embedSvc, embedCfg, set, opts...)
	})

	// 4. Import-job tracking.
	hub := jobs.NewHub(jobSvc, slog.Default(),
		jobs.WithIntervals(cfg.Jobs.PollInterval(), cfg.Jobs.ActivePollInterval()))

	// 5. Ingestion pipeline.
	pipeline := ingest.New(embedSvc, st, slog.Default())

	// 6. HTTP server.
	services, err := server.NewServices(st, hub, sessions, pipeline, prefSvc,
		embedCfg, cfg.Cache.AttributeDebounce())
	if err != nil {
		hub.Close()
		closeStore()
		return nil, vserr.Wrap(err, vserr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{ListenAddr: cfg.Server.Listen})
	if err != nil {
		hub.Close()
		closeStore()
		return nil, vserr.Wrap(err, vserr.CodeCLISetupFailure, "creating server")
	}
	srv.RegisterServices(services)

	return &App{
		Server:   srv,
		Store:    st,
		Hub:      hub,
		Sessions: sessions,
	}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	a.Sessions.CloseAll()
	a.Hub.Close()
	return a.Store.Close()
}

// openBackend connects the configured store backend and derives the job and
// preference services from it. Redis provides all three; sqlite has no
// server-side import machinery, so jobs are unsupported and preferences live
// in memory.
func openBackend(ctx context.Context, cfg *config.Config) (vecstore.Store, vecstore.JobService, prefs.Service, error) {
	switch cfg.Store.Backend {
	case "redis":
		st, err := redisvs.New(ctx, redisvs.Config{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, vserr.Wrap(err, vserr.CodeCLISetupFailure, "connecting to redis")
		}
		return st, st, prefs.NewRedisService(st.Client()), nil
	case "sqlite":
		st, err := sqlitevec.New(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, nil, vserr.Wrap(err, vserr.CodeCLISetupFailure, "opening sqlite store")
		}
		return st, unsupportedJobs{}, prefs.NewMemoryService(), nil
	default:
		return nil, nil, nil, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
			"unknown store backend %q", cfg.Store.Backend)
	}
}

// searchStore is the session controllers' view of the store: searches hit the
// backend directly while dimensionality lookups go through the TTL cache.
type searchStore struct {
	store vecstore.Store
	dims  *vecstore.DimsCache
}

func (s searchStore) SimilaritySearch(ctx context.Context, set string, q vecstore.Query) (*vecstore.Result, error) {
	return s.store.SimilaritySearch(ctx, set, q)
}

func (s searchStore) Dimensionality(ctx context.Context, set string) (int, error) {
	return s.dims.Dimensionality(ctx, set)
}

// providerFactory builds an embedding.Provider from its config.
type providerFactory func(ctx context.Context, pc embedding.Config) (embedding.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject failing factories.
var builtinProviderFactories = map[string]providerFactory{
	"openai": func(_ context.Context, pc embedding.Config) (embedding.Provider, error) {
		return embedding.NewOpenAIProvider(pc.APIKey, pc.BaseURL)
	},
	"google": func(ctx context.Context, pc embedding.Config) (embedding.Provider, error) {
		return embedding.NewGoogleProvider(ctx, pc.APIKey)
	},
}

// registerProviders iterates configured providers and registers matching
// built-in implementations. Unknown names or empty API keys are logged and
// skipped; neither is fatal at startup.
func registerProviders(ctx context.Context, cfg *config.Config, reg *embedding.Registry) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			slog.Warn("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(ctx, pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(p)
		slog.Info("registered provider", "provider", name)
	}
}

// unsupportedJobs is the job service for backends without server-side import
// machinery. Listing is empty rather than an error so the UI can still render
// the jobs panel.
type unsupportedJobs struct{}

var _ vecstore.JobService = unsupportedJobs{}

func (unsupportedJobs) CreateImportJob(_ context.Context, _ string, _ vecstore.ImportRequest) (*vecstore.Job, error) {
	return nil, vserr.New(vserr.CodeStoreOperationUnsupported, "import jobs are not supported by this backend")
}

func (unsupportedJobs) ListJobs(_ context.Context, _ string) ([]*vecstore.Job, error) {
	return []*vecstore.Job{}, nil
}

func (unsupportedJobs) GetJob(_ context.Context, id string) (*vecstore.Job, error) {
	return nil, vserr.Errorf(vserr.CodeJobNotFound, "job %q not found", id)
}

func (unsupportedJobs) PauseJob(_ context.Context, _ string) error {
	return vserr.New(vserr.CodeStoreOperationUnsupported, "import jobs are not supported by this backend")
}

func (unsupportedJobs) ResumeJob(_ context.Context, _ string) error {
	return vserr.New(vserr.CodeStoreOperationUnsupported, "import jobs are not supported by this backend")
}

func (unsupportedJobs) CancelJob(_ context.Context, _ string) error {
	return vserr.New(vserr.CodeStoreOperationUnsupported, "import jobs are not supported by this backend")
}

func (unsupportedJobs) ImportLog(_ context.Context, _ string, _ int) ([]vecstore.ImportLogEntry, error) {
	return []vecstore.ImportLogEntry{}, nil
}
