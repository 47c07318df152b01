// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package ingest turns dropped content (clipboard text, text files, images)
// into vectors and adds them to a vector set, one element per item.
package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/vecscope-dev/vecscope/internal/embedding"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// Embedder is the slice of the embedding service the pipeline needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string, cfg embedding.Config) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte, mimeType string, cfg embedding.Config) ([]float32, error)
}

// Adder is the slice of the store contract the pipeline needs.
type Adder interface {
	Add(ctx context.Context, set, element string, vector []float32, attributes string) error
}

// Kind is the classification of one ingestion item.
type Kind string

const (
	KindText     Kind = "text"
	KindTextFile Kind = "text_file"
	KindImage    Kind = "image"
)

// Item is one piece of content to ingest. Filename and MediaType may be
// empty for raw clipboard text.
type Item struct {
	Filename  string
	MediaType string
	Data      []byte

	// Attributes is an optional JSON document stored alongside the vector.
	Attributes string
}

// ItemResult is the per-item outcome. Err is set for isolated failures; the
// batch always attempts every item.
type ItemResult struct {
	Element string
	Kind    Kind
	Err     error
}

// Progress reports batch progress. Processed increments for every attempted
// item, success or failure, and never decreases.
type Progress struct {
	Processed int
	Total     int
}

// Pipeline classifies, embeds, and stores a batch of items.
type Pipeline struct {
	embedder Embedder
	store    Adder
	logger   *slog.Logger

	onProgress func(Progress)
	onVector   func(set, element string)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProgressListener registers a callback invoked after every attempted
// item with monotonically increasing progress.
func WithProgressListener(fn func(Progress)) Option {
	return func(p *Pipeline) { p.onProgress = fn }
}

// WithVectorListener registers a callback invoked once per successfully
// stored vector.
func WithVectorListener(fn func(set, element string)) Option {
	return func(p *Pipeline) { p.onVector = fn }
}

func New(embedder Embedder, store Adder, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{embedder: embedder, store: store, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest processes every item in the batch against set. Per-item failures
// are recorded in the corresponding ItemResult and do not stop the batch.
func (p *Pipeline) Ingest(ctx context.Context, set string, cfg embedding.Config, items []Item) []ItemResult {
	results := make([]ItemResult, 0, len(items))
	total := len(items)

	for i, item := range items {
		res := p.ingestOne(ctx, set, cfg, item)
		results = append(results, res)

		if res.Err != nil {
			p.logger.Warn("ingestion item failed",
				"set", set, "element", res.Element, "kind", res.Kind, "error", res.Err)
		} else if p.onVector != nil {
			p.onVector(set, res.Element)
		}
		if p.onProgress != nil {
			p.onProgress(Progress{Processed: i + 1, Total: total})
		}
	}
	return results
}

func (p *Pipeline) ingestOne(ctx context.Context, set string, cfg embedding.Config, item Item) ItemResult {
	kind := Classify(item)
	element := ElementID(kind, item)
	res := ItemResult{Element: element, Kind: kind}

	var (
		vector []float32
		err    error
	)
	switch kind {
	case KindImage:
		vector, err = p.embedder.EmbedImage(ctx, item.Data, item.MediaType, cfg)
	default:
		vector, err = p.embedder.EmbedText(ctx, string(item.Data), cfg)
	}
	if err != nil {
		res.Err = vserr.Wrap(err, vserr.CodeIngestItemFailure, "embedding failed",
			vserr.FieldElement(element), vserr.FieldVectorSet(set))
		return res
	}

	if err := p.store.Add(ctx, set, element, vector, item.Attributes); err != nil {
		res.Err = vserr.Wrap(err, vserr.CodeIngestItemFailure, "store add failed",
			vserr.FieldElement(element), vserr.FieldVectorSet(set))
	}
	return res
}

// textExtensions is the text-file allow-list checked when the media type is
// not decisive.
var textExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".markdown": {}, ".csv": {}, ".tsv": {},
	".json": {}, ".jsonl": {}, ".yaml": {}, ".yml": {}, ".toml": {},
	".xml": {}, ".html": {}, ".htm": {}, ".log": {},
}

// Classify buckets an item as image, text file, or raw text. Images win on
// media-type prefix; text files on media type or extension; everything else
// is treated as pasted text.
func Classify(item Item) Kind {
	mt := strings.ToLower(item.MediaType)
	if strings.HasPrefix(mt, "image/") {
		return KindImage
	}
	if item.Filename != "" {
		if strings.HasPrefix(mt, "text/") {
			return KindTextFile
		}
		ext := strings.ToLower(filepath.Ext(item.Filename))
		if _, ok := textExtensions[ext]; ok {
			return KindTextFile
		}
	}
	return KindText
}

// ElementID derives a stable element identifier for an item. Raw text uses
// its first two words under a fixed prefix; files use the sanitized filename,
// with the extension stripped for images and kept for text files.
func ElementID(kind Kind, item Item) string {
	switch kind {
	case KindImage:
		name := strings.TrimSuffix(item.Filename, filepath.Ext(item.Filename))
		return sanitize(name)
	case KindTextFile:
		return sanitize(item.Filename)
	default:
		words := strings.Fields(string(item.Data))
		if len(words) > 2 {
			words = words[:2]
		}
		return "text_" + sanitize(strings.Join(words, "_"))
	}
}

// sanitize collapses every run of non-alphanumeric characters to a single
// underscore and trims underscores at the edges.
func sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
