// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package shell

import (
	"context"
	"sync"
)

// =============================================================================
// View model
// =============================================================================

// BlockKind selects how a Block is presented.
type BlockKind int

const (
	// BlockText is a paragraph.
	BlockText BlockKind = iota
	// BlockStats is a list of label/value pairs.
	BlockStats
	// BlockTable is a grid with headers.
	BlockTable
	// BlockError is an in-page error message.
	BlockError
	// BlockLoading is a placeholder shown while data loads.
	BlockLoading
)

// Stat is one label/value pair of a BlockStats.
type Stat struct {
	Label string
	Value string
}

// Block is one section of a page.
type Block struct {
	Kind    BlockKind
	Title   string
	Text    string
	Stats   []Stat
	Headers []string
	Rows    [][]string
}

// Link is a navigable reference shown on a page.
type Link struct {
	Label  string
	Href   string
	Active bool
}

// Field is one input an Action asks for.
type Field struct {
	Name     string
	Label    string
	Secret   bool
	Optional bool
	Default  string

	// Options restricts the value to a fixed set when non-empty.
	Options []string
}

// Input carries field values by Field.Name.
type Input map[string]string

// Get returns the value of a field, or "".
func (in Input) Get(name string) string { return in[name] }

// Bool reports whether a field holds a truthy value.
func (in Input) Bool(name string) bool {
	switch in[name] {
	case "1", "true", "yes", "on", "y":
		return true
	}
	return false
}

// Action is a user-triggerable operation. Run carries the behaviour, so
// no global handler names are involved.
type Action struct {
	Key    string
	Label  string
	Fields []Field
	Run    func(ctx context.Context, in Input) error
}

// View is the complete visual state of a page.
type View struct {
	Title   string
	Blocks  []Block
	Links   []Link
	Actions []Action

	// Errors holds field-level validation messages by Field.Name.
	Errors map[string]string

	// User is the signed-in display name, shown by the navigation bar.
	User string
}

// Action returns the action with the given key.
func (v View) Action(key string) (Action, bool) {
	for _, a := range v.Actions {
		if a.Key == key {
			return a, true
		}
	}
	return Action{}, false
}

// Text concatenates the text of every block, for searching in tests and
// plain renderers.
func (v View) Text() string {
	s := v.Title
	for _, b := range v.Blocks {
		s += "\n" + b.Title + "\n" + b.Text
		for _, st := range b.Stats {
			s += "\n" + st.Label + ": " + st.Value
		}
		for _, row := range b.Rows {
			for _, cell := range row {
				s += " " + cell
			}
			s += "\n"
		}
	}
	return s
}

// =============================================================================
// Container
// =============================================================================

// Container is the surface pages render into.
type Container interface {
	Clear()
	Render(v View)
	ScrollTop()
}

// MemoryContainer keeps the last rendered view. It backs tests and
// headless hosts.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryContainer struct {
	mu       sync.Mutex
	view     *View
	renders  int
	clears   int
	scrolled int
}

// NewMemoryContainer creates an empty MemoryContainer.
func NewMemoryContainer() *MemoryContainer { return &MemoryContainer{} }

// Clear drops the current view.
func (c *MemoryContainer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = nil
	c.clears++
}

// Render replaces the current view.
func (c *MemoryContainer) Render(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = &v
	c.renders++
}

// ScrollTop counts scroll resets.
func (c *MemoryContainer) ScrollTop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scrolled++
}

// View returns the current view and whether one is shown.
func (c *MemoryContainer) View() (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == nil {
		return View{}, false
	}
	return *c.view, true
}

// Renders returns how many views were rendered.
func (c *MemoryContainer) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// Scrolls returns how many times ScrollTop was called.
func (c *MemoryContainer) Scrolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scrolled
}
