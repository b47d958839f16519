// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, CurrentConfigVersion, cfg.Meta.Version)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())
}

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "fintrack.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, yaml.Unmarshal(data, &onDisk))
	assert.Equal(t, 30*time.Second, onDisk.API.Timeout)
	assert.Contains(t, string(data), "timeout: 30s")
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: https://api.example.com\n  max_concurrency: 8\nlogging:\n  level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, 8, cfg.API.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 8*time.Second, cfg.Notifications.ErrorDuration)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad url", "api:\n  base_url: not a url\n", "Config.API.BaseURL"},
		{"zero concurrency", "api:\n  max_concurrency: 0\n", "Config.API.MaxConcurrency"},
		{"bad level", "logging:\n  level: loud\n", "Config.Logging.Level"},
		{"short secret", "backend:\n  jwt_secret: short\n", "Config.Backend.JWTSecret"},
		{"refresh before access", "backend:\n  access_ttl: 2h\n  refresh_ttl: 1h\n", "Config.Backend.RefreshTTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fintrack.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := Load(path)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.yaml")
	cfg := DefaultConfig()
	cfg.Backend.Addr = "0.0.0.0:8080"
	cfg.Session.StorageDir = ""

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".fintrack"), ExpandHome("~/.fintrack"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
