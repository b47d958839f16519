// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fintrack runs the FinTrack demo backend and a terminal client
// for it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/config"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/observability"
)

var (
	configPath string
	traceSpans bool

	cfg     config.Config
	tracing *observability.Tracing

	rootCmd = &cobra.Command{
		Use:   "fintrack",
		Short: "A personal finance tracker for the terminal",
		Long: `FinTrack keeps track of transactions, budgets and spending trends.
"fintrack serve" starts the demo backend and "fintrack shell" opens the
interactive client against it.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			loaded, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			cfg = loaded

			var w io.Writer
			if traceSpans {
				w = os.Stderr
			}
			t, err := observability.NewTracing(w)
			if err != nil {
				return err
			}
			t.Install()
			tracing = t
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if tracing == nil {
				return nil
			}
			return tracing.Shutdown(cmd.Context())
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the fintrack version",
		Args:  cobra.NoArgs,

		// version needs no configuration file.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run:               func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fintrack %s\n", version)
		},
	}
)

// version is stamped with -ldflags "-X main.version=...".
var version = "1.0.0"

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to fintrack.yaml (default ~/.fintrack/fintrack.yaml)")
	rootCmd.PersistentFlags().BoolVar(&traceSpans, "trace", false,
		"Print OpenTelemetry spans to stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shellCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the logging section.
func newLogger(service string, quiet bool) *logging.Logger {
	return logging.New(logging.Config{
		Level:   cfg.LogLevel(),
		LogDir:  cfg.Logging.Dir,
		Service: service,
		JSON:    cfg.Logging.JSON,
		Quiet:   quiet,
	})
}
