// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package session owns the query state of one vector-set browsing session
// and turns state changes into debounced, cancellable, de-duplicated
// similarity searches.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vecscope-dev/vecscope/internal/async"
	"github.com/vecscope-dev/vecscope/internal/embedding"
	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// SearchStore is the slice of the store contract the controller needs.
type SearchStore interface {
	SimilaritySearch(ctx context.Context, set string, q vecstore.Query) (*vecstore.Result, error)
	Dimensionality(ctx context.Context, set string) (int, error)
}

// Embedder is the slice of the embedding service the controller needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string, cfg embedding.Config) ([]float32, error)
}

const (
	// DefaultQueryDelay debounces ordinary query edits.
	DefaultQueryDelay = 300 * time.Millisecond
	// DefaultFilterDelay debounces edits made while the filter expression is
	// changing; filters are typically being typed, queries react faster.
	DefaultFilterDelay = 800 * time.Millisecond
)

// Snapshot is a point-in-time copy of the session for rendering. Err is the
// single error slot; it is cleared by the next user action.
type Snapshot struct {
	Set     string
	State   State
	Matches []vecstore.Match
	Err     error
}

// Controller implements the search session. All mutators coalesce through
// one debouncer; at most one request is outstanding per signature, and a
// response is applied only if the session still wants it at arrival time.
type Controller struct {
	store    SearchStore
	embedder Embedder
	embedCfg embedding.Config

	queryDelay  time.Duration
	filterDelay time.Duration

	mu         sync.Mutex
	set        string
	state      State
	matches    []vecstore.Match
	err        error
	lastIssued *Signature
	// filter value at the time of the last issued search; a differing
	// current filter selects the longer debounce delay.
	issuedFilter string
	epoch        uint64
	ctx          context.Context
	cancel       context.CancelFunc

	debouncer *async.Debouncer
	onResults func(Snapshot)
}

// Option configures a Controller.
type Option func(*Controller)

// WithDelays overrides the debounce delays (for testing).
func WithDelays(query, filter time.Duration) Option {
	return func(c *Controller) {
		c.queryDelay = query
		c.filterDelay = filter
	}
}

// WithResultListener registers a callback invoked after every applied
// response or error, outside the controller lock.
func WithResultListener(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onResults = fn }
}

// NewController creates a session for the given vector set.
func NewController(store SearchStore, embedder Embedder, embedCfg embedding.Config, set string, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:       store,
		embedder:    embedder,
		embedCfg:    embedCfg,
		queryDelay:  DefaultQueryDelay,
		filterDelay: DefaultFilterDelay,
		set:         set,
		state:       newState(""),
		ctx:         ctx,
		cancel:      cancel,
		debouncer:   async.NewDebouncer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels pending and in-flight work.
func (c *Controller) Close() {
	c.debouncer.Cancel()
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
}

// Snapshot returns a copy of the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	matches := make([]vecstore.Match, len(c.matches))
	copy(matches, c.matches)
	return Snapshot{Set: c.set, State: c.state, Matches: matches, Err: c.err}
}

// SetQuery updates the query text and schedules a search.
func (c *Controller) SetQuery(text string) {
	c.mutate(func(s *State) { s.Query = text })
}

// SetMode switches the query interpretation mode.
func (c *Controller) SetMode(mode Mode) {
	if !mode.Valid() {
		return
	}
	c.mutate(func(s *State) { s.Mode = mode })
}

// SetFilter updates the filter expression.
func (c *Controller) SetFilter(filter string) {
	c.mutate(func(s *State) { s.Filter = filter })
}

// SetCount updates the requested result count.
func (c *Controller) SetCount(count int) {
	if count <= 0 {
		count = DefaultResultCount
	}
	c.mutate(func(s *State) { s.Count = count })
}

// SetTuning replaces the pass-through tuning knobs.
func (c *Controller) SetTuning(t Tuning) {
	c.mutate(func(s *State) { s.Tuning = t })
}

// SwitchSet moves the session to another vector set: every piece of state
// except the filter resets, pending work is cancelled, and a search fires
// immediately (without debounce) so a non-empty filter previews matches.
func (c *Controller) SwitchSet(set string) {
	c.debouncer.Cancel()

	c.mu.Lock()
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.epoch++
	c.set = set
	c.state = newState(c.state.Filter)
	c.matches = nil
	c.err = nil
	c.lastIssued = nil
	c.issuedFilter = ""
	c.mu.Unlock()

	c.fire()
}

// mutate applies one user action and schedules the debounced search. Any
// visible error is cleared by the action, per the error model.
func (c *Controller) mutate(apply func(*State)) {
	c.mu.Lock()
	apply(&c.state)
	c.err = nil
	delay := c.queryDelay
	if c.state.Filter != c.issuedFilter {
		delay = c.filterDelay
	}
	c.mu.Unlock()

	c.debouncer.Do(delay, c.fire)
}

// fire issues the search for the current state, if one is due.
func (c *Controller) fire() {
	c.mu.Lock()

	sig := c.state.signature()
	if c.lastIssued != nil && *c.lastIssued == sig {
		c.mu.Unlock()
		return
	}

	plan, err := c.planLocked(sig)
	if err != nil {
		c.applyErrorLocked(sig, err)
		listener, snap := c.onResults, c.snapshotLocked()
		c.mu.Unlock()
		notify(listener, snap)
		return
	}
	if plan == nil {
		// Nothing to search (e.g. empty query without filter).
		c.mu.Unlock()
		return
	}

	issued := sig
	c.lastIssued = &issued
	c.issuedFilter = sig.Filter
	epoch := c.epoch
	ctx := c.ctx
	set := c.set
	c.mu.Unlock()

	go c.execute(ctx, epoch, set, sig, plan)
}

// plan is one resolved search strategy, ready to execute.
type plan struct {
	query vecstore.Query
	title string
	// embedText is set when the vector must be produced by the embedding
	// provider before the search can run.
	embedText string
	// needsZeroVector is set when the vector is all zeros at the store's
	// dimensionality, resolved at execution time.
	needsZeroVector bool
	// recordEmbedding notes whether the produced vector becomes
	// LastTextEmbedding on success.
	recordEmbedding bool
}

// planLocked selects the strategy for sig. It returns (nil, nil) when no
// search should fire.
func (c *Controller) planLocked(sig Signature) (*plan, error) {
	base := vecstore.Query{
		Filter:          sig.Filter,
		Count:           sig.Count,
		SearchEF:        c.state.Tuning.SearchEF,
		FilterEF:        c.state.Tuning.FilterEF,
		ForceLinearScan: c.state.Tuning.ForceLinearScan,
		NoThread:        c.state.Tuning.NoThread,
		WithAttributes:  true,
	}

	switch sig.Mode {
	case ModeVector:
		if sig.Query == "" {
			if sig.Filter == "" {
				return nil, nil
			}
			p := &plan{query: base, title: "Elements matching filter", needsZeroVector: true}
			return p, nil
		}
		if vec := parseRawVector(sig.Query); vec != nil {
			// Raw numeric input invalidates the remembered text embedding.
			c.state.LastTextEmbedding = nil
			q := base
			q.Vector = vec
			return &plan{query: q, title: "Results for raw vector"}, nil
		}
		if !c.embedCfg.Configured() {
			return nil, vserr.New(vserr.CodeEmbeddingUnavailable,
				"no embedding provider configured for this set", vserr.FieldVectorSet(c.set))
		}
		return &plan{
			query:           base,
			title:           fmt.Sprintf("Results for %q", sig.Query),
			embedText:       sig.Query,
			recordEmbedding: true,
		}, nil

	case ModeElement:
		if sig.Query == "" {
			return nil, nil
		}
		q := base
		q.Element = sig.Query
		return &plan{query: q, title: fmt.Sprintf("Results similar to %q", sig.Query)}, nil

	case ModeImage:
		if sig.Query == "" {
			return nil, nil
		}
		vec := parseRawVector(sig.Query)
		if vec == nil {
			return nil, vserr.New(vserr.CodeSearchQueryInvalid,
				"image mode expects a flattened embedding (comma-separated floats)")
		}
		q := base
		q.Vector = vec
		return &plan{query: q, title: "Results for image query"}, nil

	default:
		return nil, vserr.Errorf(vserr.CodeSearchQueryInvalid, "unknown mode %q", sig.Mode)
	}
}

// execute resolves the plan's vector, runs the search, and applies the
// response if the session still wants it.
func (c *Controller) execute(ctx context.Context, epoch uint64, set string, sig Signature, p *plan) {
	var embedded []float32

	switch {
	case p.needsZeroVector:
		dims, err := c.store.Dimensionality(ctx, set)
		if err != nil {
			c.applyError(epoch, sig, err)
			return
		}
		p.query.Vector = make([]float32, dims)

	case p.embedText != "":
		vec, err := c.embedder.EmbedText(ctx, p.embedText, c.embedCfg)
		if err != nil {
			c.applyError(epoch, sig, err)
			return
		}
		p.query.Vector = vec
		embedded = vec

	case sig.Mode == ModeImage:
		dims, err := c.store.Dimensionality(ctx, set)
		if err != nil {
			c.applyError(epoch, sig, err)
			return
		}
		if len(p.query.Vector) != dims {
			c.applyError(epoch, sig, vserr.New(vserr.CodeSearchDimensionMismatch,
				fmt.Sprintf("image vector has %d dimensions, set expects %d", len(p.query.Vector), dims),
				vserr.FieldVectorSet(set)))
			return
		}
	}

	if ctx.Err() != nil {
		return // session moved on while we were resolving the vector
	}

	result, err := c.store.SimilaritySearch(ctx, set, p.query)
	if err != nil {
		c.applyError(epoch, sig, err)
		return
	}

	c.mu.Lock()
	if !c.wantsLocked(epoch, sig) {
		c.mu.Unlock()
		return
	}
	c.matches = result.Matches
	c.err = nil
	c.state.ResultsTitle = p.title
	c.state.SearchSeconds = result.ExecutionSeconds
	c.state.Command = result.Command
	if p.recordEmbedding {
		c.state.LastTextEmbedding = embedded
	}
	listener, snap := c.onResults, c.snapshotLocked()
	c.mu.Unlock()

	notify(listener, snap)
}

// wantsLocked is the staleness fence: a response is applied only when the
// session epoch matches and the current state still has the signature the
// request was issued for. Last relevant response wins, not last response.
func (c *Controller) wantsLocked(epoch uint64, sig Signature) bool {
	return epoch == c.epoch && c.state.signature() == sig
}

func (c *Controller) applyError(epoch uint64, sig Signature, err error) {
	c.mu.Lock()
	if !c.wantsLocked(epoch, sig) {
		c.mu.Unlock()
		return
	}
	c.applyErrorLocked(sig, err)
	listener, snap := c.onResults, c.snapshotLocked()
	c.mu.Unlock()

	notify(listener, snap)
}

// applyErrorLocked populates the single error slot and clears the results.
func (c *Controller) applyErrorLocked(_ Signature, err error) {
	c.err = err
	c.matches = nil
}

func notify(listener func(Snapshot), snap Snapshot) {
	if listener != nil {
		listener(snap)
	}
}
