// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package session

import (
	"math"
	"strconv"
	"strings"
)

// Mode selects how the query text is interpreted.
type Mode string

const (
	// ModeVector treats the query as text to embed, a raw numeric vector,
	// or (when blank with a filter) a filter-only preview.
	ModeVector Mode = "vector"
	// ModeElement treats the query as an element id for a similarity lookup.
	ModeElement Mode = "element"
	// ModeImage expects a flattened embedding produced upstream from an image.
	ModeImage Mode = "image"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeVector, ModeElement, ModeImage:
		return true
	}
	return false
}

// DefaultResultCount is the result count a fresh session starts with.
const DefaultResultCount = 10

// Tuning carries the knobs passed through verbatim to every query.
type Tuning struct {
	SearchEF        int
	FilterEF        int
	ForceLinearScan bool
	NoThread        bool
}

// State is the session's current query state. Exactly one mode is active.
// LastTextEmbedding is set only after a text-to-vector search and cleared
// when raw numeric vector input is detected.
type State struct {
	Mode   Mode
	Query  string
	Filter string
	Count  int
	Tuning Tuning

	LastTextEmbedding []float32

	ResultsTitle  string
	SearchSeconds float64
	Command       string
}

func newState(filter string) State {
	return State{
		Mode:   ModeVector,
		Filter: filter,
		Count:  DefaultResultCount,
	}
}

// Signature is the snapshot used to suppress redundant requests: a new
// search is issued only when it differs from the last issued one.
type Signature struct {
	Query  string
	Mode   Mode
	Count  int
	Filter string
}

func (s State) signature() Signature {
	return Signature{
		Query:  strings.TrimSpace(s.Query),
		Mode:   s.Mode,
		Count:  s.Count,
		Filter: s.Filter,
	}
}

// parseRawVector interprets text as a comma-separated list of finite
// numbers. It returns nil when any component fails to parse, which routes
// the text to the embedding strategy instead.
func parseRawVector(text string) []float32 {
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		vec = append(vec, float32(f))
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}
