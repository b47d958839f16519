// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
)

const sessionKey = "fintrack_session"

// BadgerConfig configures the durable session store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory.
	Path string

	// InMemory keeps the database in RAM. Useful for testing.
	InMemory bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *logging.Logger
}

// BadgerStore persists the session record in BadgerDB. It is the durable
// "remember me" scope.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions serialize writers.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts logging.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadgerStore opens (creating if needed) the durable store.
//
// # Outputs
//
//   - *BadgerStore: Caller must Close it.
//   - error: Non-nil if Path is missing or the database cannot be opened.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent session store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("create session directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load returns the stored record or ErrNoRecord.
func (s *BadgerStore) Load(context.Context) (Record, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKey))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading session record: %w", err)
	}
	return decodeRecord(raw)
}

// Save replaces the stored record.
func (s *BadgerStore) Save(_ context.Context, rec Record) error {
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKey), raw)
	}); err != nil {
		return fmt.Errorf("writing session record: %w", err)
	}
	return nil
}

// Clear removes the stored record. Clearing an empty store is a no-op.
func (s *BadgerStore) Clear(context.Context) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKey))
	}); err != nil {
		return fmt.Errorf("deleting session record: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
