// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vecscope-dev/vecscope/internal/embedding"
	"github.com/vecscope-dev/vecscope/internal/session"
	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records searches and serves canned results. A hook can delay or
// fail individual searches to exercise staleness handling.
type fakeStore struct {
	mu       sync.Mutex
	dims     int
	searches []recordedSearch
	hook     func(set string, q vecstore.Query) (*vecstore.Result, error)
}

type recordedSearch struct {
	set string
	q   vecstore.Query
}

func newFakeStore(dims int) *fakeStore {
	return &fakeStore{dims: dims}
}

func (f *fakeStore) SimilaritySearch(_ context.Context, set string, q vecstore.Query) (*vecstore.Result, error) {
	f.mu.Lock()
	f.searches = append(f.searches, recordedSearch{set: set, q: q})
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		return hook(set, q)
	}
	return &vecstore.Result{
		Matches:          []vecstore.Match{{Element: "elem-1", Score: 0.9}},
		ExecutionSeconds: 0.0042,
		Command:          "VSIM test ...",
	}, nil
}

func (f *fakeStore) Dimensionality(_ context.Context, _ string) (int, error) {
	return f.dims, nil
}

func (f *fakeStore) calls() []recordedSearch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedSearch, len(f.searches))
	copy(out, f.searches)
	return out
}

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedText(_ context.Context, _ string, _ embedding.Config) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.vector, f.err
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var testEmbedCfg = embedding.Config{Provider: "fake", Model: "m"}

func newTestController(t *testing.T, store session.SearchStore, emb session.Embedder, cfg embedding.Config) *session.Controller {
	t.Helper()
	c := session.NewController(store, emb, cfg, "test",
		session.WithDelays(20*time.Millisecond, 40*time.Millisecond))
	t.Cleanup(c.Close)
	return c
}

func TestController_CoalescesRapidEdits(t *testing.T) {
	store := newFakeStore(3)
	emb := &fakeEmbedder{vector: []float32{1, 2, 3}}
	c := newTestController(t, store, emb, testEmbedCfg)

	for _, q := range []string{"r", "re", "red", "red ", "red bicycle"} {
		c.SetQuery(q)
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	calls := store.calls()
	require.Len(t, calls, 1, "rapid edits must coalesce into one request")
	assert.Equal(t, 1, emb.callCount())

	snap := c.Snapshot()
	assert.Equal(t, `Results for "red bicycle"`, snap.State.ResultsTitle)
	assert.Equal(t, []float32{1, 2, 3}, snap.State.LastTextEmbedding)
	assert.InDelta(t, 0.0042, snap.State.SearchSeconds, 1e-9)
	assert.Equal(t, "VSIM test ...", snap.State.Command)
}

func TestController_SkipsIdenticalSignature(t *testing.T) {
	store := newFakeStore(3)
	emb := &fakeEmbedder{vector: []float32{1, 2, 3}}
	c := newTestController(t, store, emb, testEmbedCfg)

	c.SetQuery("red bicycle")
	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)

	// Tuning is not part of the signature; re-submitting the same state
	// must not issue a second request.
	c.SetQuery("red bicycle")
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, store.calls(), 1)
}

func TestController_ZeroVectorSearch(t *testing.T) {
	store := newFakeStore(4)
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)

	c.SetFilter(`.color == "red"`)
	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)

	call := store.calls()[0]
	assert.Equal(t, []float32{0, 0, 0, 0}, call.q.Vector, "zero vector at store dimensionality")
	assert.Equal(t, `.color == "red"`, call.q.Filter)

	snap := c.Snapshot()
	assert.Equal(t, "Elements matching filter", snap.State.ResultsTitle)
}

func TestController_EmptyQueryNoFilterNoSearch(t *testing.T) {
	store := newFakeStore(4)
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)

	c.SetQuery("   ")
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, store.calls())
}

func TestController_RawVectorClearsTextEmbedding(t *testing.T) {
	store := newFakeStore(3)
	emb := &fakeEmbedder{vector: []float32{9, 9, 9}}
	c := newTestController(t, store, emb, testEmbedCfg)

	c.SetQuery("red bicycle")
	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.Snapshot().State.LastTextEmbedding != nil }, time.Second, 10*time.Millisecond)

	c.SetQuery("0.1,0.2,0.3")
	require.Eventually(t, func() bool { return len(store.calls()) == 2 }, time.Second, 10*time.Millisecond)

	call := store.calls()[1]
	assert.InDelta(t, 0.1, call.q.Vector[0], 1e-6)
	assert.Len(t, call.q.Vector, 3)

	snap := c.Snapshot()
	assert.Nil(t, snap.State.LastTextEmbedding, "raw numeric input clears the text embedding")
	assert.Equal(t, 1, emb.callCount(), "raw vectors bypass the embedder")
}

func TestController_EmbeddingUnavailable(t *testing.T) {
	store := newFakeStore(3)
	c := newTestController(t, store, &fakeEmbedder{}, embedding.Config{})

	c.SetQuery("red bicycle")

	require.Eventually(t, func() bool { return c.Snapshot().Err != nil }, time.Second, 10*time.Millisecond)
	snap := c.Snapshot()
	assert.True(t, vserr.IsEmbeddingUnavailable(snap.Err))
	assert.Empty(t, snap.Matches, "errors clear the result set")
	assert.Empty(t, store.calls(), "no request without an embedding")
}

func TestController_ElementLookup(t *testing.T) {
	store := newFakeStore(3)
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)

	c.SetMode(session.ModeElement)
	c.SetQuery("elem-42")
	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)

	call := store.calls()[0]
	assert.Equal(t, "elem-42", call.q.Element)
	assert.Empty(t, call.q.Vector)
	assert.Equal(t, `Results similar to "elem-42"`, c.Snapshot().State.ResultsTitle)
}

func TestController_ImageDimensionMismatch(t *testing.T) {
	store := newFakeStore(512)
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)

	c.SetMode(session.ModeImage)
	c.SetQuery("0.1,0.2,0.3")

	require.Eventually(t, func() bool { return c.Snapshot().Err != nil }, time.Second, 10*time.Millisecond)
	assert.True(t, vserr.IsDimensionMismatch(c.Snapshot().Err))
	assert.Empty(t, store.calls(), "mismatched vectors must not reach the store")
}

func TestController_ImageMatchingDimensions(t *testing.T) {
	store := newFakeStore(3)
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)

	c.SetMode(session.ModeImage)
	c.SetQuery("0.1,0.2,0.3")

	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "Results for image query", c.Snapshot().State.ResultsTitle)
}

func TestController_TuningPassedVerbatim(t *testing.T) {
	store := newFakeStore(3)
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)

	c.SetTuning(session.Tuning{SearchEF: 200, FilterEF: 50, ForceLinearScan: true, NoThread: true})
	c.SetMode(session.ModeElement)
	c.SetQuery("elem-1")

	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)
	q := store.calls()[0].q
	assert.Equal(t, 200, q.SearchEF)
	assert.Equal(t, 50, q.FilterEF)
	assert.True(t, q.ForceLinearScan)
	assert.True(t, q.NoThread)
}

func TestController_SwitchSetResetsAllButFilter(t *testing.T) {
	store := newFakeStore(3)
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)

	c.SetMode(session.ModeElement)
	c.SetCount(50)
	c.SetFilter(`.size == 10`)
	time.Sleep(100 * time.Millisecond)
	before := len(store.calls())

	c.SwitchSet("other")

	// Immediate zero-vector search against the new set, no debounce.
	require.Eventually(t, func() bool { return len(store.calls()) == before+1 }, time.Second, 10*time.Millisecond)
	call := store.calls()[before]
	assert.Equal(t, "other", call.set)
	assert.Equal(t, []float32{0, 0, 0}, call.q.Vector)
	assert.Equal(t, `.size == 10`, call.q.Filter)

	snap := c.Snapshot()
	assert.Equal(t, session.ModeVector, snap.State.Mode)
	assert.Equal(t, session.DefaultResultCount, snap.State.Count)
	assert.Equal(t, `.size == 10`, snap.State.Filter, "filter survives the switch verbatim")
	assert.Empty(t, snap.State.Query)
}

func TestController_SwitchSetEmptyFilterNoSearch(t *testing.T) {
	store := newFakeStore(3)
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)

	c.SwitchSet("other")
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, store.calls(), "nothing to preview without a filter")
}

func TestController_StaleResponseDiscarded(t *testing.T) {
	store := newFakeStore(3)
	release := make(chan struct{})
	store.hook = func(_ string, q vecstore.Query) (*vecstore.Result, error) {
		if q.Element == "slow" {
			<-release
			return &vecstore.Result{Matches: []vecstore.Match{{Element: "stale"}}}, nil
		}
		return &vecstore.Result{Matches: []vecstore.Match{{Element: "fresh"}}}, nil
	}

	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)
	c.SetMode(session.ModeElement)

	c.SetQuery("slow")
	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)

	c.SetQuery("fast")
	require.Eventually(t, func() bool { return len(store.calls()) == 2 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return len(snap.Matches) == 1 && snap.Matches[0].Element == "fresh"
	}, time.Second, 10*time.Millisecond)

	// Now let the slow response land; it must be discarded.
	close(release)
	time.Sleep(50 * time.Millisecond)

	snap := c.Snapshot()
	require.Len(t, snap.Matches, 1)
	assert.Equal(t, "fresh", snap.Matches[0].Element, "a slow earlier response must not overwrite a later one")
}

func TestController_StoreErrorPopulatesSlotAndNextActionClears(t *testing.T) {
	store := newFakeStore(3)
	store.hook = func(_ string, _ vecstore.Query) (*vecstore.Result, error) {
		return nil, vserr.New(vserr.CodeStoreRequestFailure, "boom")
	}
	c := newTestController(t, store, &fakeEmbedder{}, testEmbedCfg)
	c.SetMode(session.ModeElement)
	c.SetQuery("elem-1")

	require.Eventually(t, func() bool { return c.Snapshot().Err != nil }, time.Second, 10*time.Millisecond)
	assert.Empty(t, c.Snapshot().Matches)

	store.mu.Lock()
	store.hook = nil
	store.mu.Unlock()

	c.SetQuery("elem-2")
	assert.Nil(t, c.Snapshot().Err, "a user action clears the error slot")
	require.Eventually(t, func() bool { return len(c.Snapshot().Matches) == 1 }, time.Second, 10*time.Millisecond)
}

func TestController_FilterChangeUsesLongerDelay(t *testing.T) {
	store := newFakeStore(3)
	c := session.NewController(store, &fakeEmbedder{}, testEmbedCfg, "test",
		session.WithDelays(10*time.Millisecond, 150*time.Millisecond))
	defer c.Close()

	c.SetFilter(`.color == "red"`)

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, store.calls(), "filter edits wait for the longer window")

	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestController_ResultListener(t *testing.T) {
	store := newFakeStore(3)

	var mu sync.Mutex
	var got []session.Snapshot
	c := session.NewController(store, &fakeEmbedder{}, testEmbedCfg, "test",
		session.WithDelays(10*time.Millisecond, 20*time.Millisecond),
		session.WithResultListener(func(s session.Snapshot) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}))
	defer c.Close()

	c.SetMode(session.ModeElement)
	c.SetQuery("elem-1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "elem-1", got[len(got)-1].Matches[0].Element)
}
