// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package embedding_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vecscope-dev/vecscope/internal/embedding"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider records how many times each modality was invoked.
type countingProvider struct {
	textCalls  int
	imageCalls int
	vector     []float32
	err        error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) EmbedText(_ context.Context, _ string, _ embedding.Config) ([]float32, error) {
	p.textCalls++
	return p.vector, p.err
}

func (p *countingProvider) EmbedImage(_ context.Context, _ []byte, _ string, _ embedding.Config) ([]float32, error) {
	p.imageCalls++
	return p.vector, p.err
}

func testService(p embedding.Provider, cache *embedding.Cache) *embedding.Service {
	reg := embedding.NewRegistry()
	reg.Register(p)
	return embedding.NewService(reg, cache)
}

func TestCache_HitWithinTTL(t *testing.T) {
	now := time.Now()
	cache := embedding.NewCache(5*time.Minute, 100)
	cache.SetNowFunc(func() time.Time { return now })

	provider := &countingProvider{vector: []float32{1, 2, 3}}
	svc := testService(provider, cache)
	cfg := embedding.Config{Provider: "counting", Model: "m1"}

	first, err := svc.EmbedText(context.Background(), "red bicycle", cfg)
	require.NoError(t, err)

	// Just under the TTL: still a hit.
	now = now.Add(5*time.Minute - time.Second)
	second, err := svc.EmbedText(context.Background(), "red bicycle", cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.textCalls, "second call must be served from cache")
}

func TestCache_RegeneratesAfterTTL(t *testing.T) {
	now := time.Now()
	cache := embedding.NewCache(5*time.Minute, 100)
	cache.SetNowFunc(func() time.Time { return now })

	provider := &countingProvider{vector: []float32{1}}
	svc := testService(provider, cache)
	cfg := embedding.Config{Provider: "counting"}

	_, err := svc.EmbedText(context.Background(), "red bicycle", cfg)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	_, err = svc.EmbedText(context.Background(), "red bicycle", cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.textCalls, "expired entry must be regenerated")
}

func TestCache_ConfigChangeInvalidates(t *testing.T) {
	cache := embedding.NewCache(5*time.Minute, 100)
	provider := &countingProvider{vector: []float32{1}}
	svc := testService(provider, cache)

	_, err := svc.EmbedText(context.Background(), "red bicycle", embedding.Config{Provider: "counting", Model: "a"})
	require.NoError(t, err)
	_, err = svc.EmbedText(context.Background(), "red bicycle", embedding.Config{Provider: "counting", Model: "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, provider.textCalls, "different model config must miss")
}

func TestCache_ModalitySeparatesKeys(t *testing.T) {
	cache := embedding.NewCache(5*time.Minute, 100)
	provider := &countingProvider{vector: []float32{1}}
	svc := testService(provider, cache)
	cfg := embedding.Config{Provider: "counting"}

	_, err := svc.EmbedText(context.Background(), "payload", cfg)
	require.NoError(t, err)
	_, err = svc.EmbedImage(context.Background(), []byte("payload"), "image/png", cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.textCalls)
	assert.Equal(t, 1, provider.imageCalls)
}

func TestCache_SharedPrefixDistinctLength(t *testing.T) {
	cache := embedding.NewCache(5*time.Minute, 100)
	provider := &countingProvider{vector: []float32{1}}
	svc := testService(provider, cache)
	cfg := embedding.Config{Provider: "counting"}

	// Same first 50 chars, different total length.
	long := ""
	for range 10 {
		long += "aaaaaaaaaa"
	}

	_, err := svc.EmbedText(context.Background(), long, cfg)
	require.NoError(t, err)
	_, err = svc.EmbedText(context.Background(), long+"b", cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.textCalls)
}

func TestCache_FailureNotCached(t *testing.T) {
	cache := embedding.NewCache(5*time.Minute, 100)
	provider := &countingProvider{err: vserr.New(vserr.CodeEmbeddingRequestFailure, "down")}
	svc := testService(provider, cache)
	cfg := embedding.Config{Provider: "counting"}

	_, err := svc.EmbedText(context.Background(), "q", cfg)
	require.Error(t, err)

	provider.err = nil
	provider.vector = []float32{1}
	_, err = svc.EmbedText(context.Background(), "q", cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.textCalls)
}

func TestCache_OverflowEvictsOnlyExpired(t *testing.T) {
	now := time.Now()
	cache := embedding.NewCache(5*time.Minute, 10)
	cache.SetNowFunc(func() time.Time { return now })

	provider := &countingProvider{vector: []float32{1}}
	svc := testService(provider, cache)
	cfg := embedding.Config{Provider: "counting"}

	// Five entries that will expire.
	for i := range 5 {
		_, err := svc.EmbedText(context.Background(), fmt.Sprintf("old-%d", i), cfg)
		require.NoError(t, err)
	}

	// Six live entries push the count past the cap of 10.
	now = now.Add(6 * time.Minute)
	for i := range 6 {
		_, err := svc.EmbedText(context.Background(), fmt.Sprintf("new-%d", i), cfg)
		require.NoError(t, err)
	}

	// The overflow sweep removed the expired five; the live six stay.
	assert.Equal(t, 6, cache.Len())
}

func TestCache_OverflowNeverEvictsLive(t *testing.T) {
	now := time.Now()
	cache := embedding.NewCache(5*time.Minute, 5)
	cache.SetNowFunc(func() time.Time { return now })

	provider := &countingProvider{vector: []float32{1}}
	svc := testService(provider, cache)
	cfg := embedding.Config{Provider: "counting"}

	for i := range 8 {
		_, err := svc.EmbedText(context.Background(), fmt.Sprintf("live-%d", i), cfg)
		require.NoError(t, err)
	}

	// All entries are live, so the cap is only advisory.
	assert.Equal(t, 8, cache.Len())
}

func TestService_NoProviderConfigured(t *testing.T) {
	svc := testService(&countingProvider{}, embedding.NewCache(0, 0))

	_, err := svc.EmbedText(context.Background(), "q", embedding.Config{})
	require.Error(t, err)
	assert.True(t, vserr.IsEmbeddingUnavailable(err))

	_, err = svc.EmbedText(context.Background(), "q", embedding.Config{Provider: "none"})
	require.Error(t, err)
	assert.True(t, vserr.IsEmbeddingUnavailable(err))
}

func TestService_UnknownProvider(t *testing.T) {
	svc := testService(&countingProvider{}, embedding.NewCache(0, 0))

	_, err := svc.EmbedText(context.Background(), "q", embedding.Config{Provider: "mystery"})
	require.Error(t, err)
	assert.True(t, vserr.HasCode(err, vserr.CodeEmbeddingProviderNotFound))
}
