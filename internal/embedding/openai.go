// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package embedding

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAIProvider implements Provider using the OpenAI embeddings API.
type OpenAIProvider struct {
	client openaisdk.Client
}

// NewOpenAIProvider creates the provider. Returns an error if the API key is
// missing.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, vserr.New(vserr.CodeConfigValidateInvalidValue,
			"openai: missing api_key in config", vserr.FieldProvider("openai"))
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{client: openaisdk.NewClient(opts...)}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) EmbedText(ctx context.Context, text string, cfg Config) ([]float32, error) {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openaisdk.EmbeddingModel(model),
	}
	if cfg.Dimensions > 0 {
		params.Dimensions = openaisdk.Int(int64(cfg.Dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeEmbeddingRequestFailure, "openai embedding request",
			vserr.FieldProvider("openai"))
	}
	if len(resp.Data) == 0 {
		return nil, vserr.New(vserr.CodeEmbeddingRequestFailure, "openai returned no embeddings",
			vserr.FieldProvider("openai"))
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedImage is not supported: the OpenAI embeddings API is text-only.
func (p *OpenAIProvider) EmbedImage(_ context.Context, _ []byte, _ string, _ Config) ([]float32, error) {
	return nil, vserr.New(vserr.CodeEmbeddingModalityUnsupported,
		"openai embeddings are text-only", vserr.FieldProvider("openai"))
}
