// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package embedding turns raw user content into vectors through a configured
// remote provider, with a memoizing cache in front.
package embedding

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// Config selects and parameterizes the provider for one vector set. The
// serialized form participates in cache keys, so any change invalidates
// stale cache hits without explicit invalidation.
type Config struct {
	Provider   string `json:"provider" mapstructure:"provider"`
	Model      string `json:"model" mapstructure:"model"`
	APIKey     string `json:"-" mapstructure:"api_key"`
	BaseURL    string `json:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `json:"dimensions,omitempty" mapstructure:"dimensions"`
}

// Configured reports whether a provider is actually selected.
func (c Config) Configured() bool {
	return c.Provider != "" && c.Provider != "none"
}

// CacheKeyPart serializes the config fields that affect the produced vector.
func (c Config) CacheKeyPart() string {
	// json tags exclude the API key; the key never changes the vector.
	raw, _ := json.Marshal(c)
	return string(raw)
}

// Provider generates embeddings for one backend.
type Provider interface {
	Name() string
	EmbedText(ctx context.Context, text string, cfg Config) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte, mimeType string, cfg Config) ([]float32, error)
}

// Registry holds the available providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Provider resolves cfg to a registered provider. An unconfigured config is
// EmbeddingUnavailable; a configured but unknown name is a distinct error so
// misconfiguration is not mistaken for "no provider chosen".
func (r *Registry) Provider(cfg Config) (Provider, error) {
	if !cfg.Configured() {
		return nil, vserr.New(vserr.CodeEmbeddingUnavailable, "no embedding provider configured")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[cfg.Provider]
	if !ok {
		return nil, vserr.New(vserr.CodeEmbeddingProviderNotFound,
			"unknown embedding provider", vserr.FieldProvider(cfg.Provider))
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
