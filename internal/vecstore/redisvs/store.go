// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package redisvs adapts the Redis vector-set command family (VADD, VSIM,
// VDIM, ...) to the vecstore contracts. It is the default backend.
package redisvs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// Compile-time interface checks.
var (
	_ vecstore.Store      = (*Store)(nil)
	_ vecstore.JobService = (*Store)(nil)
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements vecstore.Store and vecstore.JobService over a single
// Redis connection pool.
type Store struct {
	client  *redis.Client
	nowFunc func() time.Time // for testing
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "pinging redis at %s", cfg.Addr)
	}

	return &Store{client: client, nowFunc: time.Now}, nil
}

// NewWithClient wraps an existing client (for tests against miniredis etc.).
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, nowFunc: time.Now}
}

// Client exposes the underlying connection pool so other subsystems
// (preferences) can share it.
func (s *Store) Client() *redis.Client {
	return s.client
}

// SetNowFunc overrides the time source (for testing).
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.nowFunc = fn
}

// SimilaritySearch issues VSIM and reports the literal command and measured
// execution time alongside the ranked matches.
func (s *Store) SimilaritySearch(ctx context.Context, set string, q vecstore.Query) (*vecstore.Result, error) {
	args := []any{"VSIM", set}

	switch {
	case q.Element != "":
		args = append(args, "ELE", q.Element)
	case len(q.Vector) > 0:
		args = append(args, "VALUES", len(q.Vector))
		for _, v := range q.Vector {
			args = append(args, formatFloat(v))
		}
	default:
		return nil, vserr.New(vserr.CodeSearchQueryInvalid, "query needs a vector or an element", vserr.FieldVectorSet(set))
	}

	args = append(args, "WITHSCORES")
	if q.Count > 0 {
		args = append(args, "COUNT", q.Count)
	}
	if q.SearchEF > 0 {
		args = append(args, "EF", q.SearchEF)
	}
	if q.Filter != "" {
		args = append(args, "FILTER", q.Filter)
		if q.FilterEF > 0 {
			args = append(args, "FILTER-EF", q.FilterEF)
		}
	}
	if q.ForceLinearScan {
		args = append(args, "TRUTH")
	}
	if q.NoThread {
		args = append(args, "NOTHREAD")
	}

	started := s.nowFunc()
	reply, err := s.client.Do(ctx, args...).Result()
	elapsed := s.nowFunc().Sub(started)
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VSIM", vserr.FieldVectorSet(set))
	}

	matches, err := parseScoredReply(reply)
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "parsing VSIM reply", vserr.FieldVectorSet(set))
	}

	if q.WithAttributes && len(matches) > 0 {
		elements := make([]string, len(matches))
		for i, m := range matches {
			elements[i] = m.Element
		}
		attrs, err := s.GetAttributes(ctx, set, elements)
		if err != nil {
			return nil, err
		}
		for i := range matches {
			matches[i].Attributes = attrs[matches[i].Element]
		}
	}

	if q.WithVectors {
		for i := range matches {
			vec, err := s.embedding(ctx, set, matches[i].Element)
			if err != nil {
				return nil, err
			}
			matches[i].Vector = vec
		}
	}

	return &vecstore.Result{
		Matches:          matches,
		ExecutionSeconds: elapsed.Seconds(),
		Command:          commandText(args),
	}, nil
}

func (s *Store) Cardinality(ctx context.Context, set string) (int64, error) {
	n, err := s.client.Do(ctx, "VCARD", set).Int64()
	if err != nil {
		return 0, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VCARD", vserr.FieldVectorSet(set))
	}
	return n, nil
}

func (s *Store) Dimensionality(ctx context.Context, set string) (int, error) {
	n, err := s.client.Do(ctx, "VDIM", set).Int64()
	if err != nil {
		if isMissingKey(err) {
			return 0, vserr.New(vserr.CodeStoreSetNotFound, "vector set does not exist", vserr.FieldVectorSet(set))
		}
		return 0, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VDIM", vserr.FieldVectorSet(set))
	}
	return int(n), nil
}

func (s *Store) Add(ctx context.Context, set, element string, vector []float32, attributes string) error {
	args := []any{"VADD", set, "VALUES", len(vector)}
	for _, v := range vector {
		args = append(args, formatFloat(v))
	}
	args = append(args, element)
	if attributes != "" {
		args = append(args, "SETATTR", attributes)
	}

	if err := s.client.Do(ctx, args...).Err(); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VADD",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, set, element string) error {
	if err := s.client.Do(ctx, "VREM", set, element).Err(); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VREM",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}
	return nil
}

// Links returns neighbor links per HNSW layer, outermost first.
func (s *Store) Links(ctx context.Context, set, element string) ([][]vecstore.Neighbor, error) {
	reply, err := s.client.Do(ctx, "VLINKS", set, element, "WITHSCORES").Result()
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VLINKS",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}

	layers, ok := reply.([]any)
	if !ok {
		return nil, vserr.Errorf(vserr.CodeStoreRequestFailure, "unexpected VLINKS reply type %T", reply)
	}

	out := make([][]vecstore.Neighbor, 0, len(layers))
	for _, layer := range layers {
		matches, err := parseScoredReply(layer)
		if err != nil {
			return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "parsing VLINKS layer")
		}
		neighbors := make([]vecstore.Neighbor, len(matches))
		for i, m := range matches {
			neighbors[i] = vecstore.Neighbor{Element: m.Element, Score: m.Score}
		}
		out = append(out, neighbors)
	}
	return out, nil
}

func (s *Store) GetAttribute(ctx context.Context, set, element string) (string, error) {
	raw, err := s.client.Do(ctx, "VGETATTR", set, element).Text()
	if err != nil {
		if err == redis.Nil {
			return "", nil // element has no attributes
		}
		return "", vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VGETATTR",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}
	return raw, nil
}

// GetAttributes batch-fetches raw attribute strings with one pipeline round
// trip. Elements without attributes map to the empty string.
func (s *Store) GetAttributes(ctx context.Context, set string, elements []string) (map[string]string, error) {
	out := make(map[string]string, len(elements))
	if len(elements) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.Cmd, len(elements))
	for i, el := range elements {
		cmds[i] = pipe.Do(ctx, "VGETATTR", set, el)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VGETATTR pipeline", vserr.FieldVectorSet(set))
	}

	for i, cmd := range cmds {
		raw, err := cmd.Text()
		if err != nil {
			if err == redis.Nil {
				out[elements[i]] = ""
				continue
			}
			return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VGETATTR",
				vserr.FieldVectorSet(set), vserr.FieldElement(elements[i]))
		}
		out[elements[i]] = raw
	}
	return out, nil
}

func (s *Store) SetAttribute(ctx context.Context, set, element, attributes string) error {
	if err := s.client.Do(ctx, "VSETATTR", set, element, attributes).Err(); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VSETATTR",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}
	return nil
}

// ListSets scans for keys of type vectorset.
func (s *Store) ListSets(ctx context.Context) ([]string, error) {
	var (
		sets   []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.ScanType(ctx, cursor, "*", 100, "vectorset").Result()
		if err != nil {
			return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "scanning vector sets")
		}
		sets = append(sets, keys...)
		if next == 0 {
			return sets, nil
		}
		cursor = next
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) embedding(ctx context.Context, set, element string) ([]float32, error) {
	raw, err := s.client.Do(ctx, "VEMB", set, element).Slice()
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "VEMB",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}

	vec := make([]float32, 0, len(raw))
	for _, item := range raw {
		f, err := toFloat(item)
		if err != nil {
			return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "parsing VEMB component")
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}

// parseScoredReply decodes a flat [element, score, element, score, ...]
// WITHSCORES reply.
func parseScoredReply(reply any) ([]vecstore.Match, error) {
	items, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected reply type %T", reply)
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("odd WITHSCORES reply length %d", len(items))
	}

	matches := make([]vecstore.Match, 0, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		element, ok := items[i].(string)
		if !ok {
			return nil, fmt.Errorf("element at %d is %T, want string", i, items[i])
		}
		score, err := toFloat(items[i+1])
		if err != nil {
			return nil, fmt.Errorf("score for %q: %w", element, err)
		}
		matches = append(matches, vecstore.Match{Element: element, Score: score})
	}
	return matches, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("cannot parse %T as float", v)
	}
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

// commandText renders the command the way it was sent, for the diagnostics
// echo shown next to search results.
func commandText(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

func isMissingKey(err error) bool {
	return err == redis.Nil || (err != nil && strings.Contains(err.Error(), "no such key"))
}
