// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vecscope-dev/vecscope/internal/secrets"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// keyringService is the keyring service name under which Vecscope stores
// secrets. Config files reference entries as keyring://vecscope/<name>.
const keyringService = "vecscope"

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Store and delete provider API keys in the operating system keyring.\n" +
			"Reference them from the config file as keyring://vecscope/<name>.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret, reading its value from stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	value, err := readSecretValue(cmd)
	if err != nil {
		return err
	}
	if value == "" {
		return vserr.New(vserr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	store := secretStoreFactory()
	if err := store.Store(keyringService, name, value); err != nil {
		return vserr.Wrapf(err, vserr.CodeSecretStoreFailure, "storing secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: keyring://%s/%s\n", keyringService, name)
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	if err := store.Delete(keyringService, name); err != nil {
		if vserr.HasCode(err, vserr.CodeSecretNotFound) {
			return vserr.Errorf(vserr.CodeSecretNotFound, "secret %q not found", name)
		}
		return vserr.Wrapf(err, vserr.CodeSecretDeleteFailure, "deleting secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}

// readSecretValue reads the secret from stdin. On a terminal it prompts and
// disables echo; when piped it reads a single line.
func readSecretValue(cmd *cobra.Command) (string, error) {
	type fdReader interface{ Fd() uintptr }

	if f, ok := cmd.InOrStdin().(fdReader); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "Value: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", vserr.Wrap(err, vserr.CodeCLIInputInvalid, "reading secret value")
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var value string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &value); err != nil {
		return "", vserr.Wrap(err, vserr.CodeCLIInputInvalid, "reading secret value from stdin")
	}
	return strings.TrimSpace(value), nil
}
