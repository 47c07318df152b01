// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vecscope-dev/vecscope/internal/config"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the vecscope server",
		Long:  "Load configuration, connect to the vector store, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	// initViper already merged defaults, env, and any discovered config file
	// into the global Viper, so unmarshal from there to keep flag overrides.
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if path := viper.ConfigFileUsed(); path != "" {
		config.WarnInsecurePermissions(path)
	}

	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wiring subsystems: %w", err)
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			slog.Warn("shutdown error", "error", cerr)
		}
	}()

	slog.Info("starting vecscope",
		"listen", cfg.Server.Listen,
		"backend", cfg.Store.Backend,
		"embedding", cfg.Embedding.Default,
	)

	return app.Start(ctx)
}
