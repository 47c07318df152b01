// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vecscope-dev/vecscope/internal/vecstore"
)

// SetEvent is a tracker event tagged with its vector set, as carried on the
// hub's merged stream.
type SetEvent struct {
	Set   string
	Event Event
}

// Hub lazily runs one Tracker per vector set and merges their event streams.
// Trackers live until the hub closes.
type Hub struct {
	svc    vecstore.JobService
	logger *slog.Logger
	opts   []Option

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	trackers map[string]*Tracker

	events chan SetEvent
}

func NewHub(svc vecstore.JobService, logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		svc:      svc,
		logger:   logger,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		trackers: make(map[string]*Tracker),
		events:   make(chan SetEvent, eventBuffer),
	}
}

// Tracker returns the tracker for set, starting one on first use.
func (h *Hub) Tracker(set string) *Tracker {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tr, ok := h.trackers[set]; ok {
		return tr
	}

	tr := NewTracker(h.svc, set, h.logger, h.opts...)
	h.trackers[set] = tr

	go tr.Run(h.ctx)
	go h.forward(set, tr)
	return tr
}

// Service exposes the underlying job service for job creation; the hub
// itself only observes.
func (h *Hub) Service() vecstore.JobService {
	return h.svc
}

// Events is the merged stream across every running tracker.
func (h *Hub) Events() <-chan SetEvent {
	return h.events
}

func (h *Hub) forward(set string, tr *Tracker) {
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev := <-tr.Events():
			select {
			case h.events <- SetEvent{Set: set, Event: ev}:
			default:
				h.logger.Warn("dropping hub event", "set", set, "type", ev.Type)
			}
		}
	}
}

// Close stops every tracker.
func (h *Hub) Close() {
	h.cancel()
}
