// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package server

import (
	"context"
	"sync"
	"time"

	"github.com/vecscope-dev/vecscope/internal/attrs"
	"github.com/vecscope-dev/vecscope/internal/embedding"
	"github.com/vecscope-dev/vecscope/internal/ingest"
	"github.com/vecscope-dev/vecscope/internal/jobs"
	"github.com/vecscope-dev/vecscope/internal/prefs"
	"github.com/vecscope-dev/vecscope/internal/session"
	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
	"github.com/vecscope-dev/vecscope/pkg/health"
)

// Services holds the dependencies injected into route handlers. Use
// NewServices so required services are validated up front.
type Services struct {
	store    vecstore.Store
	jobs     *jobs.Hub
	sessions *session.Manager
	pipeline Ingestor
	prefs    prefs.Service
	embedCfg embedding.Config

	// AttributeDebounce applies to each session's attribute cache.
	attributeDebounce time.Duration

	// ingestEvents feeds vectors_imported notifications into the SSE stream.
	ingestEvents chan EventPayload

	mu        sync.Mutex
	attrCache map[string]*attrs.Cache // session id -> attribute cache
}

// Ingestor is the slice of the ingestion pipeline handlers need.
type Ingestor interface {
	Ingest(ctx context.Context, set string, cfg embedding.Config, items []ingest.Item) []ingest.ItemResult
}

// NewServices validates and bundles the handler dependencies.
func NewServices(
	store vecstore.Store,
	hub *jobs.Hub,
	sessions *session.Manager,
	pipeline Ingestor,
	preferences prefs.Service,
	embedCfg embedding.Config,
	attributeDebounce time.Duration,
) (*Services, error) {
	if store == nil {
		return nil, vserr.New(vserr.CodeServerStartFailure, "store is required")
	}
	if hub == nil {
		return nil, vserr.New(vserr.CodeServerStartFailure, "job hub is required")
	}
	if sessions == nil {
		return nil, vserr.New(vserr.CodeServerStartFailure, "session manager is required")
	}
	if pipeline == nil {
		return nil, vserr.New(vserr.CodeServerStartFailure, "ingestion pipeline is required")
	}
	if preferences == nil {
		return nil, vserr.New(vserr.CodeServerStartFailure, "preference service is required")
	}
	if attributeDebounce <= 0 {
		attributeDebounce = attrs.DefaultDebounce
	}
	return &Services{
		store:             store,
		jobs:              hub,
		sessions:          sessions,
		pipeline:          pipeline,
		prefs:             preferences,
		embedCfg:          embedCfg,
		attributeDebounce: attributeDebounce,
		ingestEvents:      make(chan EventPayload, 32),
		attrCache:         make(map[string]*attrs.Cache),
	}, nil
}

// notifyVectorsImported emits a non-blocking vectors_imported event. A full
// buffer drops the event; SSE consumers reconcile via list endpoints anyway.
func (s *Services) notifyVectorsImported(set string, count int) {
	select {
	case s.ingestEvents <- EventPayload{Type: EventVectorsImported, Set: set, Count: count}:
	default:
	}
}

// Health probes each subsystem and aggregates the result. The store check
// issues a real backend call, bounded so a hung backend cannot stall the
// health endpoint.
func (s *Services) Health(ctx context.Context) health.Report {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	storeComp := health.Component{Name: "store", State: health.StateOK}
	if _, err := s.store.ListSets(ctx); err != nil {
		storeComp.State = health.StateUnavailable
		storeComp.Detail = err.Error()
	}

	embedComp := health.Component{Name: "embedding", State: health.StateOK}
	if !s.embedCfg.Configured() {
		embedComp.State = health.StateDegraded
		embedComp.Detail = "no default embedding provider; text and image search are disabled"
	}

	return health.Aggregate(storeComp, embedComp)
}

// openSession creates a controller plus the attribute cache fed by its
// results.
func (s *Services) openSession(set string) string {
	cache := attrs.New(s.store, attrs.WithDebounce(s.attributeDebounce))

	id, _ := s.sessions.Create(set, session.WithResultListener(func(snap session.Snapshot) {
		elements := make([]string, 0, len(snap.Matches))
		for _, m := range snap.Matches {
			elements = append(elements, m.Element)
		}
		cache.Update(snap.Set, elements)
	}))

	s.mu.Lock()
	s.attrCache[id] = cache
	s.mu.Unlock()
	return id
}

func (s *Services) closeSession(id string) {
	s.sessions.Close(id)

	s.mu.Lock()
	cache, ok := s.attrCache[id]
	delete(s.attrCache, id)
	s.mu.Unlock()

	if ok {
		cache.Close()
	}
}

func (s *Services) sessionAttrs(id string) (*attrs.Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.attrCache[id]
	if !ok {
		return nil, vserr.New(vserr.CodeSearchSessionNotFound, "unknown session")
	}
	return cache, nil
}

// overwriteAttribute pushes a successful edit into every session cache that
// already holds the element.
func (s *Services) overwriteAttribute(element, raw string) {
	s.mu.Lock()
	caches := make([]*attrs.Cache, 0, len(s.attrCache))
	for _, c := range s.attrCache {
		caches = append(caches, c)
	}
	s.mu.Unlock()

	for _, c := range caches {
		if _, ok := c.Raw(element); ok {
			c.Overwrite(element, raw)
		}
	}
}
