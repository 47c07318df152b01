// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package prefs stores small user preferences (default result count, last
// selected set, UI toggles) as opaque key/value strings.
package prefs

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// Service is the preference store contract. Missing keys read as "".
type Service interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

const redisKey = "vecscope:prefs"

// RedisService keeps preferences in a single Redis hash, next to the job
// records the same backend holds.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (s *RedisService) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.HGet(ctx, redisKey, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", vserr.Wrap(err, vserr.CodeStoreRequestFailure, "preference read failed")
	}
	return val, nil
}

func (s *RedisService) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, redisKey, key, value).Err(); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "preference write failed")
	}
	return nil
}

func (s *RedisService) All(ctx context.Context) (map[string]string, error) {
	all, err := s.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "preference read failed")
	}
	return all, nil
}

// MemoryService is the process-local fallback used with the sqlite backend.
type MemoryService struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryService() *MemoryService {
	return &MemoryService{values: make(map[string]string)}
}

func (s *MemoryService) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemoryService) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryService) All(context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

var (
	_ Service = (*RedisService)(nil)
	_ Service = (*MemoryService)(nil)
)
