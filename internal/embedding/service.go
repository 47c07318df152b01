// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package embedding

import "context"

// Service is the front door used by search and ingestion: provider
// resolution plus the shared cache.
type Service struct {
	registry *Registry
	cache    *Cache
}

func NewService(registry *Registry, cache *Cache) *Service {
	return &Service{registry: registry, cache: cache}
}

// EmbedText produces a vector for natural text, memoized.
func (s *Service) EmbedText(ctx context.Context, text string, cfg Config) ([]float32, error) {
	provider, err := s.registry.Provider(cfg)
	if err != nil {
		return nil, err
	}

	return s.cache.GetOrCompute(text, cfg, false, func() ([]float32, error) {
		return provider.EmbedText(ctx, text, cfg)
	})
}

// EmbedImage produces a vector for raw image bytes, memoized.
func (s *Service) EmbedImage(ctx context.Context, data []byte, mimeType string, cfg Config) ([]float32, error) {
	provider, err := s.registry.Provider(cfg)
	if err != nil {
		return nil, err
	}

	return s.cache.GetOrCompute(string(data), cfg, true, func() ([]float32, error) {
		return provider.EmbedImage(ctx, data, mimeType, cfg)
	})
}
