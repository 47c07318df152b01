// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vecscope-dev/vecscope/internal/config"
	"github.com/vecscope-dev/vecscope/internal/secrets"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// NewRootCmd creates the root vecscope command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vecscope",
		Short:         "Vecscope, a vector set browser backend",
		Long:          "Vecscope serves search sessions, ingestion, and import-job tracking over vector sets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return vserr.Errorf(vserr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover vecscope.yaml from standard locations. SetConfigType
		// is intentionally omitted: when set, Viper also tries the bare name
		// without extension, which collides with the ./vecscope binary.
		v.SetConfigName("vecscope")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vecscope")
		v.AddConfigPath("/etc/vecscope")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return vserr.Errorf(vserr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere; bootstrap a default.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return vserr.Errorf(vserr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	// Provider API keys may be keyring:// references; swap in the real
	// values before anything unmarshals the config.
	secrets.ResolveViperSecrets(v, secretStoreFactory())

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return vserr.Errorf(vserr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
