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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoRecord is returned by Store.Load when nothing is persisted.
var ErrNoRecord = errors.New("no stored session")

// Record is the persisted form of a session.
type Record struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`

	// Timestamp is the save time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// SavedAt returns Timestamp as a time.
func (r Record) SavedAt() time.Time { return time.UnixMilli(r.Timestamp) }

// Store is one persistence scope for session records.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the record in process memory. It is the ephemeral
// scope: it does not survive a restart.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load returns the stored record or ErrNoRecord.
func (s *MemoryStore) Load(context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return Record{}, ErrNoRecord
	}
	return decodeRecord(s.raw)
}

// Save replaces the stored record.
func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	return nil
}

// Clear removes the stored record.
func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.raw = nil
	s.mu.Unlock()
	return nil
}

// Has reports whether a record is stored.
func (s *MemoryStore) Has() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw != nil
}

func encodeRecord(rec Record) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding session record: %w", err)
	}
	return raw, nil
}

func decodeRecord(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding session record: %w", err)
	}
	return rec, nil
}
