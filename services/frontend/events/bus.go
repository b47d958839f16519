// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events is the application-wide signal bus.
//
// The API client publishes cross-cutting failures (401, 403, 5xx) here and
// the session manager and app shell subscribe. Delivery is synchronous, in
// subscription order, on the publisher's goroutine.
package events

import (
	"fmt"
	"sync"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
)

// Kind identifies a global signal.
type Kind string

const (
	// Unauthorized is published when the backend answers 401. The API
	// client has already cleared its token when subscribers run.
	Unauthorized Kind = "unauthorized"

	// Forbidden is published on 403. The token is kept.
	Forbidden Kind = "forbidden"

	// ServerError is published on any 5xx; Detail carries the error text.
	ServerError Kind = "server_error"
)

// Event is a single published signal.
type Event struct {
	Kind   Kind
	Status int
	Path   string
	Detail string
}

// Handler receives events of the kind it subscribed to.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus fans events out to subscribers. The zero value is not usable; use
// NewBus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]subscription
	nextID int
	logger *logging.Logger
}

// NewBus creates an empty Bus. A nil logger discards panic reports.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Bus{
		subs:   make(map[Kind][]subscription),
		logger: logger.With("component", "events"),
	}
}

// Subscribe registers fn for kind and returns a function that removes the
// subscription. Calling the returned function more than once is safe.
func (b *Bus) Subscribe(kind Kind, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[kind]
			for i, s := range list {
				if s.id == id {
					b.subs[kind] = append(list[:i:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber of ev.Kind. A panicking
// subscriber is logged and skipped.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	list := make([]subscription, len(b.subs[ev.Kind]))
	copy(list, b.subs[ev.Kind])
	b.mu.RUnlock()

	for _, s := range list {
		b.deliver(s.fn, ev)
	}
}

func (b *Bus) deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				"kind", string(ev.Kind),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	fn(ev)
}
