// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package vecstore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultDimsTTL bounds how long a memoized dimensionality is trusted.
// Dimensionality only changes when a set is dropped and recreated, so a
// short TTL is enough to keep keystroke-rate validation off the network.
const DefaultDimsTTL = 30 * time.Second

// DimsCache memoizes per-set dimensionality lookups. Zero-vector searches
// and image-vector validation both need the dimensionality on every issued
// search; without the memo each keystroke costs a round trip.
type DimsCache struct {
	store Store
	cache *gocache.Cache
}

// NewDimsCache wraps store with a dimensionality memo using the given TTL.
func NewDimsCache(store Store, ttl time.Duration) *DimsCache {
	if ttl <= 0 {
		ttl = DefaultDimsTTL
	}
	return &DimsCache{
		store: store,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Dimensionality returns the set's vector dimensionality, memoized.
func (d *DimsCache) Dimensionality(ctx context.Context, set string) (int, error) {
	if v, ok := d.cache.Get(set); ok {
		return v.(int), nil
	}

	dims, err := d.store.Dimensionality(ctx, set)
	if err != nil {
		return 0, err
	}

	d.cache.Set(set, dims, gocache.DefaultExpiration)
	return dims, nil
}

// Invalidate drops the memo for one set, e.g. after it is recreated.
func (d *DimsCache) Invalidate(set string) {
	d.cache.Delete(set)
}
