// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package vecstore

import "context"

// Store is the consumed vector-set contract. Implementations are adapters
// over a concrete backend; the orchestration layer never sees wire details.
type Store interface {
	// SimilaritySearch runs one ranked search against set.
	SimilaritySearch(ctx context.Context, set string, q Query) (*Result, error)

	Cardinality(ctx context.Context, set string) (int64, error)
	Dimensionality(ctx context.Context, set string) (int, error)

	Add(ctx context.Context, set, element string, vector []float32, attributes string) error
	Remove(ctx context.Context, set, element string) error

	// Links returns the element's neighbor links, one slice per graph layer.
	Links(ctx context.Context, set, element string) ([][]Neighbor, error)

	GetAttribute(ctx context.Context, set, element string) (string, error)
	GetAttributes(ctx context.Context, set string, elements []string) (map[string]string, error)
	SetAttribute(ctx context.Context, set, element, attributes string) error

	ListSets(ctx context.Context) ([]string, error)

	Close() error
}
