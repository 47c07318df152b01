// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecscope-dev/vecscope/internal/config"
	"github.com/vecscope-dev/vecscope/internal/embedding"
	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

func TestRegisterProviders_SkipsEmptyKeyAndUnknown(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]embedding.Config{
			"openai":  {Provider: "openai", APIKey: ""},
			"mystery": {Provider: "mystery", APIKey: "secret"},
		},
	}

	reg := embedding.NewRegistry()
	registerProviders(context.Background(), cfg, reg)

	_, err := reg.Provider(embedding.Config{Provider: "openai"})
	assert.Error(t, err, "openai must be skipped when its API key is empty")
	_, err = reg.Provider(embedding.Config{Provider: "mystery"})
	assert.Error(t, err, "unknown provider names are skipped")
}

func TestRegisterProviders_FactoryFailureIsNotFatal(t *testing.T) {
	old := builtinProviderFactories["openai"]
	builtinProviderFactories["openai"] = func(_ context.Context, _ embedding.Config) (embedding.Provider, error) {
		return nil, vserr.New(vserr.CodeEmbeddingUnavailable, "boom")
	}
	defer func() { builtinProviderFactories["openai"] = old }()

	cfg := &config.Config{
		Providers: map[string]embedding.Config{
			"openai": {Provider: "openai", APIKey: "sk-test"},
		},
	}

	reg := embedding.NewRegistry()
	registerProviders(context.Background(), cfg, reg)

	_, err := reg.Provider(embedding.Config{Provider: "openai"})
	assert.Error(t, err, "failed factories leave the registry empty instead of panicking")
}

func TestRegisterProviders_RegistersConfigured(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]embedding.Config{
			"openai": {Provider: "openai", APIKey: "sk-test"},
		},
	}

	reg := embedding.NewRegistry()
	registerProviders(context.Background(), cfg, reg)

	p, err := reg.Provider(embedding.Config{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestOpenBackend_UnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = "bogus"

	_, _, _, err := openBackend(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, vserr.HasCode(err, vserr.CodeConfigValidateInvalidValue))
}

func TestUnsupportedJobs(t *testing.T) {
	svc := unsupportedJobs{}
	ctx := context.Background()

	jobs, err := svc.ListJobs(ctx, "photos")
	require.NoError(t, err)
	assert.Empty(t, jobs, "listing must succeed with no jobs so panels can render")

	log, err := svc.ImportLog(ctx, "photos", 50)
	require.NoError(t, err)
	assert.Empty(t, log)

	_, err = svc.GetJob(ctx, "job-1")
	assert.True(t, vserr.HasCode(err, vserr.CodeJobNotFound))

	for _, action := range []func() error{
		func() error {
			_, e := svc.CreateImportJob(ctx, "photos", vecstore.ImportRequest{Filename: "x.csv"})
			return e
		},
		func() error { return svc.PauseJob(ctx, "job-1") },
		func() error { return svc.ResumeJob(ctx, "job-1") },
		func() error { return svc.CancelJob(ctx, "job-1") },
	} {
		err := action()
		assert.True(t, vserr.HasCode(err, vserr.CodeStoreOperationUnsupported))
	}
}
