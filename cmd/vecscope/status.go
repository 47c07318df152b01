// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Check the running server's health endpoint and display status information.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "server address to check (default: configured server.listen)")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("server.listen")
	}
	out := cmd.OutOrStdout()

	sc := newServerClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := sc.getJSON("/health", &body); err != nil {
		if vserr.HasCode(err, vserr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, body.Status)
	return nil
}
