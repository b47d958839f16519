// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import "sync"

// History is the navigation history the router drives. Push and Replace
// change the location silently; Back and Forward move within the entries
// and notify listeners with the new location, like a browser pop event.
type History interface {
	Current() string
	Push(path string)
	Replace(path string)
	Back() bool
	Forward() bool
	Listen(fn func(path string)) (unlisten func())
}

// MemoryHistory is an in-process History: a list of entries and a cursor.
// Pushing truncates any forward entries.
//
// # Thread Safety
//
// Safe for concurrent use. Listeners run without the lock held.
type MemoryHistory struct {
	mu        sync.Mutex
	entries   []string
	index     int
	listeners map[int]func(string)
	nextID    int
}

// NewMemoryHistory creates a history positioned at initial ("/" if empty).
func NewMemoryHistory(initial string) *MemoryHistory {
	if initial == "" {
		initial = "/"
	}
	return &MemoryHistory{
		entries:   []string{initial},
		listeners: make(map[int]func(string)),
	}
}

// Current returns the location under the cursor.
func (h *MemoryHistory) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Push appends a new entry after the cursor.
func (h *MemoryHistory) Push(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], path)
	h.index++
}

// Replace overwrites the entry under the cursor.
func (h *MemoryHistory) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = path
}

// Back moves the cursor one entry back and notifies listeners. It reports
// false at the first entry.
func (h *MemoryHistory) Back() bool { return h.move(-1) }

// Forward moves the cursor one entry forward and notifies listeners.
func (h *MemoryHistory) Forward() bool { return h.move(1) }

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns a copy of all entries, oldest first.
func (h *MemoryHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Listen registers fn for pop notifications.
func (h *MemoryHistory) Listen(fn func(path string)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *MemoryHistory) move(delta int) bool {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = next
	path := h.entries[next]
	fns := make([]func(string), 0, len(h.listeners))
	for id := 1; id <= h.nextID; id++ {
		if fn, ok := h.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(path)
	}
	return true
}
