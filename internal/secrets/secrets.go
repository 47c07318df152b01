// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package secrets keeps embedding-provider API keys out of config files by
// storing them in the OS keyring and resolving keyring:// references at load
// time.
package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"

	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// Store provides secret storage. Implementations may use OS keyrings,
// encrypted files, or other backends.
type Store interface {
	Store(service, key, value string) error
	Retrieve(service, key string) (string, error)
	Delete(service, key string) error
}

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
// On macOS it uses Keychain, on Linux secret-service (D-Bus), and on Windows
// the Credential Manager.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

var _ Store = (*KeyringStore)(nil)

func (s *KeyringStore) Store(service, key, value string) error {
	if err := validateRef(service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return vserr.Wrapf(err, vserr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := validateRef(service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", vserr.Errorf(vserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", vserr.Wrapf(err, vserr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := validateRef(service, key); err != nil {
		return err
	}
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return vserr.Errorf(vserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return vserr.Wrapf(err, vserr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}

func validateRef(service, key string) error {
	if service == "" {
		return vserr.New(vserr.CodeSecretInvalidInput, "secret: service must not be empty")
	}
	if key == "" {
		return vserr.New(vserr.CodeSecretInvalidInput, "secret: key must not be empty")
	}
	return nil
}
