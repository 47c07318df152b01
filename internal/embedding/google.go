// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package embedding

import (
	"context"

	"google.golang.org/genai"

	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

const defaultGoogleModel = "gemini-embedding-001"

// GoogleProvider implements Provider using the Gemini embedding API.
type GoogleProvider struct {
	client *genai.Client
}

// NewGoogleProvider creates the provider. Returns an error if the API key is
// missing.
func NewGoogleProvider(ctx context.Context, apiKey string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, vserr.New(vserr.CodeConfigValidateInvalidValue,
			"google: missing api_key in config", vserr.FieldProvider("google"))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, vserr.Wrapf(err, vserr.CodeEmbeddingRequestFailure, "google: creating client")
	}

	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) EmbedText(ctx context.Context, text string, cfg Config) ([]float32, error) {
	model := cfg.Model
	if model == "" {
		model = defaultGoogleModel
	}

	var embedCfg *genai.EmbedContentConfig
	if cfg.Dimensions > 0 {
		dims := int32(cfg.Dimensions)
		embedCfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := p.client.Models.EmbedContent(ctx, model, genai.Text(text), embedCfg)
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeEmbeddingRequestFailure, "google embedding request",
			vserr.FieldProvider("google"))
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, vserr.New(vserr.CodeEmbeddingRequestFailure, "google returned no embeddings",
			vserr.FieldProvider("google"))
	}

	return resp.Embeddings[0].Values, nil
}

// EmbedImage is not supported: the Gemini embedContent API is text-only.
func (p *GoogleProvider) EmbedImage(_ context.Context, _ []byte, _ string, _ Config) ([]float32, error) {
	return nil, vserr.New(vserr.CodeEmbeddingModalityUnsupported,
		"gemini embeddings are text-only", vserr.FieldProvider("google"))
}
