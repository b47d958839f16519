// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify implements the Notification Center: transient user-facing
// messages with a lifetime, optional persistence and optional actions.
//
// # Lifetimes
//
// A notification without an explicit Duration lives 5s, or 8s for
// KindError. Persistent notifications, and those shown with a negative
// Duration, stay until removed. Auto-removal goes through Remove, so a
// timer firing after a manual dismissal is a no-op.
//
// # Rendering
//
// The Center owns ordering and lifetimes; a Renderer owns presentation.
// Renderer methods are called with the Center's lock held, in the order
// notifications were shown, and must not call back into the Center.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
)

// =============================================================================
// Types
// =============================================================================

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

const (
	// DefaultDuration is the lifetime of non-error notifications.
	DefaultDuration = 5000 * time.Millisecond

	// DefaultErrorDuration is the lifetime of KindError notifications.
	DefaultErrorDuration = 8000 * time.Millisecond
)

// Action is a button attached to a notification. Invoking it runs OnInvoke
// and dismisses the notification.
type Action struct {
	Label    string
	OnInvoke func()
}

// Notification is an immutable snapshot of a shown message.
type Notification struct {
	ID         int64
	Message    string
	Kind       Kind
	CreatedAt  time.Time
	Duration   time.Duration
	Persistent bool
	Actions    []Action
}

// Options tunes a single Show call.
type Options struct {
	// Duration overrides the kind's default lifetime. Zero keeps the
	// default; a negative value disables auto-removal.
	Duration time.Duration

	// Persistent disables auto-removal regardless of Duration.
	Persistent bool

	Actions []Action

	// OnClose runs once when the notification is removed, whatever the
	// cause (timer, Remove, action, Clear).
	OnClose func(Notification)
}

// Renderer presents notifications.
type Renderer interface {
	Insert(n Notification)
	Remove(id int64)
}

// NopRenderer renders nothing.
type NopRenderer struct{}

func (NopRenderer) Insert(Notification) {}
func (NopRenderer) Remove(int64)        {}

// Config holds the default lifetimes. Zero fields fall back to the
// package defaults.
type Config struct {
	DefaultDuration time.Duration
	ErrorDuration   time.Duration
}

// =============================================================================
// Center
// =============================================================================

type entry struct {
	n       Notification
	timer   clockwork.Timer
	onClose func(Notification)
}

// Center queues, renders and expires notifications.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Center struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	renderer Renderer
	config   Config
	logger   *logging.Logger

	nextID  atomic.Int64
	entries []*entry
}

// New creates a Center. A nil clock uses the real clock; a nil renderer
// discards output; a nil logger discards logs.
func New(clock clockwork.Clock, renderer Renderer, config Config, logger *logging.Logger) *Center {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}
	if config.DefaultDuration <= 0 {
		config.DefaultDuration = DefaultDuration
	}
	if config.ErrorDuration <= 0 {
		config.ErrorDuration = DefaultErrorDuration
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Center{
		clock:    clock,
		renderer: renderer,
		config:   config,
		logger:   logger.With("component", "notify"),
	}
}

// Show appends a notification, renders it and arms its removal timer.
// It returns the notification's ID; IDs increase monotonically.
func (c *Center) Show(message string, kind Kind, opts Options) int64 {
	duration := opts.Duration
	if duration == 0 {
		duration = c.defaultFor(kind)
	}

	id := c.nextID.Inc()
	n := Notification{
		ID:         id,
		Message:    message,
		Kind:       kind,
		CreatedAt:  c.clock.Now(),
		Duration:   duration,
		Persistent: opts.Persistent || duration < 0,
		Actions:    append([]Action(nil), opts.Actions...),
	}

	e := &entry{n: n, onClose: opts.OnClose}

	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.renderer.Insert(n)
	if !n.Persistent {
		e.timer = c.clock.AfterFunc(duration, func() { c.Remove(id) })
	}
	c.mu.Unlock()

	c.logger.Debug("notification shown", "id", id, "kind", string(kind))
	return id
}

// Success shows a KindSuccess notification with default options.
func (c *Center) Success(message string) int64 { return c.Show(message, KindSuccess, Options{}) }

// Error shows a KindError notification with default options.
func (c *Center) Error(message string) int64 { return c.Show(message, KindError, Options{}) }

// Warning shows a KindWarning notification with default options.
func (c *Center) Warning(message string) int64 { return c.Show(message, KindWarning, Options{}) }

// Info shows a KindInfo notification with default options.
func (c *Center) Info(message string) int64 { return c.Show(message, KindInfo, Options{}) }

// Remove dismisses the notification with the given ID. Removing an unknown
// or already removed ID is a no-op. Reports whether anything was removed.
func (c *Center) Remove(id int64) bool {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	e := c.entries[idx]
	c.entries = append(c.entries[:idx:idx], c.entries[idx+1:]...)
	c.renderer.Remove(id)
	c.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
	}
	c.close(e)
	return true
}

// Invoke runs action index of notification id and dismisses it.
func (c *Center) Invoke(id int64, index int) error {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("notification %d: not active", id)
	}
	actions := c.entries[idx].n.Actions
	c.mu.Unlock()

	if index < 0 || index >= len(actions) {
		return fmt.Errorf("notification %d: no action %d", id, index)
	}
	if fn := actions[index].OnInvoke; fn != nil {
		fn()
	}
	c.Remove(id)
	return nil
}

// Clear removes every active notification.
func (c *Center) Clear() {
	c.mu.Lock()
	removed := c.entries
	c.entries = nil
	for _, e := range removed {
		c.renderer.Remove(e.n.ID)
	}
	c.mu.Unlock()

	for _, e := range removed {
		if e.timer != nil {
			e.timer.Stop()
		}
		c.close(e)
	}
}

// Active returns the active notifications in display order.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.n
	}
	return out
}

// Get returns the active notification with the given ID.
func (c *Center) Get(id int64) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(id); idx >= 0 {
		return c.entries[idx].n, true
	}
	return Notification{}, false
}

func (c *Center) defaultFor(kind Kind) time.Duration {
	if kind == KindError {
		return c.config.ErrorDuration
	}
	return c.config.DefaultDuration
}

// indexOf must be called with mu held.
func (c *Center) indexOf(id int64) int {
	for i, e := range c.entries {
		if e.n.ID == id {
			return i
		}
	}
	return -1
}

func (c *Center) close(e *entry) {
	if e.onClose == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("notification close callback panicked", "id", e.n.ID, "panic", fmt.Sprint(r))
		}
	}()
	e.onClose(e.n)
}
