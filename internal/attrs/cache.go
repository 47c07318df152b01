// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package attrs keeps element attributes for the currently displayed result
// set, fetching only when the set of elements actually changes.
package attrs

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vecscope-dev/vecscope/internal/async"
)

// Fetcher is the slice of the store contract this cache needs.
type Fetcher interface {
	GetAttributes(ctx context.Context, set string, elements []string) (map[string]string, error)
}

// DefaultDebounce coalesces rapid result-set updates during active searching.
const DefaultDebounce = 150 * time.Millisecond

// Cache holds raw attribute strings and their parsed key/value form. The
// parsed cache is always derived from the raw cache; one element's parse
// failure never invalidates the others.
type Cache struct {
	fetcher Fetcher
	delay   time.Duration

	mu      sync.Mutex
	raw     map[string]string
	parsed  map[string]map[string]any
	lastKey string // identity of the last fetched element set
	err     error
	ctx     context.Context
	cancel  context.CancelFunc

	debouncer *async.Debouncer
	onFetched func()
}

// Option configures a Cache.
type Option func(*Cache)

// WithDebounce overrides the coalescing window (for testing).
func WithDebounce(d time.Duration) Option {
	return func(c *Cache) { c.delay = d }
}

// WithFetchListener registers a callback invoked after each completed fetch
// attempt, success or failure.
func WithFetchListener(fn func()) Option {
	return func(c *Cache) { c.onFetched = fn }
}

func New(fetcher Fetcher, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		fetcher:   fetcher,
		delay:     DefaultDebounce,
		raw:       make(map[string]string),
		parsed:    make(map[string]map[string]any),
		ctx:       ctx,
		cancel:    cancel,
		debouncer: async.NewDebouncer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels pending and in-flight fetches.
func (c *Cache) Close() {
	c.debouncer.Cancel()
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
}

// Update schedules an attribute fetch for the displayed elements. The fetch
// runs only if the identity set differs from the last fetched one; order and
// duplicates do not matter. A failed fetch is not retried until the set
// changes again.
func (c *Cache) Update(set string, elements []string) {
	key := identityKey(set, elements)

	c.mu.Lock()
	if key == c.lastKey {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.debouncer.Do(c.delay, func() {
		c.fetch(set, elements, key)
	})
}

func (c *Cache) fetch(set string, elements []string, key string) {
	c.mu.Lock()
	if key == c.lastKey {
		c.mu.Unlock()
		return
	}
	// Mark before fetching so a failure does not auto-retry.
	c.lastKey = key
	ctx := c.ctx
	c.mu.Unlock()

	fetched, err := c.fetcher.GetAttributes(ctx, set, elements)

	c.mu.Lock()
	if err != nil {
		// Previously cached attributes stay untouched.
		c.err = err
	} else {
		c.err = nil
		for element, raw := range fetched {
			c.storeLocked(element, raw)
		}
	}
	listener := c.onFetched
	c.mu.Unlock()

	if listener != nil {
		listener()
	}
}

// Raw returns the cached raw attribute string for element.
func (c *Cache) Raw(element string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.raw[element]
	return raw, ok
}

// Parsed returns the parsed key/value form for element. Elements whose raw
// attributes failed to parse have no parsed entry.
func (c *Cache) Parsed(element string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parsed, ok := c.parsed[element]
	return parsed, ok
}

// Err returns the error from the last fetch attempt, if any.
func (c *Cache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Overwrite records a successful attribute edit: the new value replaces the
// cached one rather than evicting it.
func (c *Cache) Overwrite(element, raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(element, raw)
}

func (c *Cache) storeLocked(element, raw string) {
	c.raw[element] = raw

	if raw == "" {
		delete(c.parsed, element)
		return
	}
	var kv map[string]any
	if err := json.Unmarshal([]byte(raw), &kv); err != nil {
		// Keep the raw value; only the derived form is missing.
		delete(c.parsed, element)
		return
	}
	c.parsed[element] = kv
}

// identityKey produces an order-independent, duplicate-free identity for
// (set, elements).
func identityKey(set string, elements []string) string {
	uniq := make(map[string]struct{}, len(elements))
	for _, el := range elements {
		uniq[el] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for el := range uniq {
		sorted = append(sorted, el)
	}
	sort.Strings(sorted)
	return set + "\x00" + strings.Join(sorted, "\x00")
}
