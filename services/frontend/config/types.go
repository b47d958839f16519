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
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
)

// CurrentConfigVersion is written into new files.
const CurrentConfigVersion = "1"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the fintrack.yaml document.
type Config struct {
	Meta          MetaConfig          `yaml:"meta"`
	API           APIConfig           `yaml:"api"`
	Session       SessionConfig       `yaml:"session"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
	Backend       BackendConfig       `yaml:"backend"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	MaxConcurrency    int           `yaml:"max_concurrency" validate:"gte=1,lte=64"`
}

// SessionConfig controls where "remember me" sessions are kept.
type SessionConfig struct {
	// StorageDir holds the badger database. Empty keeps durable sessions
	// in memory for the life of the process.
	StorageDir       string        `yaml:"storage_dir"`
	ValidateInterval time.Duration `yaml:"validate_interval" validate:"gte=0"`
}

type NotificationsConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration" validate:"gt=0"`
	ErrorDuration   time.Duration `yaml:"error_duration" validate:"gt=0"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// BackendConfig configures `fintrack serve`.
type BackendConfig struct {
	Addr               string        `yaml:"addr" validate:"required,hostname_port"`
	JWTSecret          string        `yaml:"jwt_secret" validate:"required,min=16"`
	AccessTTL          time.Duration `yaml:"access_ttl" validate:"gt=0"`
	RefreshTTL         time.Duration `yaml:"refresh_ttl" validate:"gtfield=AccessTTL"`
	LoginRatePerMinute int           `yaml:"login_rate_per_minute" validate:"gte=1"`
	SeedDemo           bool          `yaml:"seed_demo"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		API: APIConfig{
			BaseURL:        "http://localhost:5000",
			Timeout:        30 * time.Second,
			MaxConcurrency: 4,
		},
		Session: SessionConfig{
			StorageDir:       "~/.fintrack/session",
			ValidateInterval: 5 * time.Minute,
		},
		Notifications: NotificationsConfig{
			DefaultDuration: 5 * time.Second,
			ErrorDuration:   8 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Backend: BackendConfig{
			Addr:               "localhost:5000",
			JWTSecret:          "change-me-fintrack-demo-secret",
			AccessTTL:          time.Hour,
			RefreshTTL:         30 * 24 * time.Hour,
			LoginRatePerMinute: 10,
			SeedDemo:           true,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section and reports all failing fields at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
}

// LogLevel parses Logging.Level, defaulting to info.
func (c Config) LogLevel() logging.Level {
	lvl, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return lvl
}
