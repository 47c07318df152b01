// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecscope-dev/vecscope/internal/secrets"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// memorySecretStore is an in-memory secrets.Store for command tests.
type memorySecretStore struct {
	values map[string]string
}

var _ secrets.Store = (*memorySecretStore)(nil)

func newMemorySecretStore() *memorySecretStore {
	return &memorySecretStore{values: make(map[string]string)}
}

func (m *memorySecretStore) Store(service, key, value string) error {
	m.values[service+"/"+key] = value
	return nil
}

func (m *memorySecretStore) Retrieve(service, key string) (string, error) {
	val, ok := m.values[service+"/"+key]
	if !ok {
		return "", vserr.Errorf(vserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return val, nil
}

func (m *memorySecretStore) Delete(service, key string) error {
	if _, ok := m.values[service+"/"+key]; !ok {
		return vserr.Errorf(vserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	delete(m.values, service+"/"+key)
	return nil
}

func withMemoryStore(t *testing.T) *memorySecretStore {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	mem := newMemorySecretStore()
	old := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return mem }
	t.Cleanup(func() { secretStoreFactory = old })
	return mem
}

func TestSecretSetCommand_PipedInput(t *testing.T) {
	mem := withMemoryStore(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetIn(strings.NewReader("sk-test-value\n"))
	root.SetArgs([]string{"secret", "set", "openai-api-key"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "keyring://vecscope/openai-api-key")

	val, err := mem.Retrieve("vecscope", "openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-value", val)
}

func TestSecretDeleteCommand(t *testing.T) {
	mem := withMemoryStore(t)
	require.NoError(t, mem.Store("vecscope", "stale-key", "v"))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"secret", "delete", "stale-key"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Deleted secret: stale-key")
	assert.Empty(t, mem.values)
}

func TestSecretDeleteCommand_NotFound(t *testing.T) {
	withMemoryStore(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"secret", "delete", "missing"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, vserr.HasCode(err, vserr.CodeSecretNotFound))
}
