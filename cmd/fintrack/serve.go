// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/backend"
)

var (
	serveAddr   string
	serveNoSeed bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the demo backend API",
		Long: `Runs the in-memory FinTrack API that the shell talks to. Data lives
only as long as the process. Unless --no-seed is given, a demo account
is created on start.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides backend.addr)")
	serveCmd.Flags().BoolVar(&serveNoSeed, "no-seed", false, "Start without the demo account")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger("fintrack-backend", false)
	defer logger.Close()

	bc := backendConfig()
	srv, err := backend.New(backend.Options{
		Config:         bc,
		Logger:         logger,
		TracerProvider: tracing.Provider(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("backend listening", "addr", bc.Addr, "version", backend.Version)
	if bc.SeedDemo {
		logger.Info("sign in with the demo account", "email", backend.DemoEmail, "password", backend.DemoPassword)
	}
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("backend stopped")
	return nil
}

// backendConfig maps the backend section and command flags onto the
// server configuration.
func backendConfig() backend.Config {
	c := backend.DefaultConfig()
	b := cfg.Backend
	c.Addr = b.Addr
	c.JWTSecret = b.JWTSecret
	c.AccessTTL = b.AccessTTL
	c.RefreshTTL = b.RefreshTTL
	c.LoginRatePerMinute = b.LoginRatePerMinute
	c.SeedDemo = b.SeedDemo && !serveNoSeed
	if serveAddr != "" {
		c.Addr = serveAddr
	}
	return c
}
