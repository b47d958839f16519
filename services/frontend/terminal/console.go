// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package terminal renders the client core into a text terminal: page
// views, notifications and action prompts.
package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// FinTrack palette.
var (
	ColorBrand   = lipgloss.Color("#2E8B57")
	ColorAccent  = lipgloss.Color("#3CB371")
	ColorMuted   = lipgloss.Color("#6B7B8C")
	ColorSuccess = lipgloss.Color("#2ECC71")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorInfo    = lipgloss.Color("#3498DB")
)

// Styles are bound to one lipgloss renderer so colour follows the
// destination writer rather than stdout.
type Styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Active  lipgloss.Style
	Key     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(ColorBrand),
		Heading: r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(ColorMuted),
		Active:  r.NewStyle().Bold(true).Underline(true).Foreground(ColorAccent),
		Key:     r.NewStyle().Foreground(ColorAccent),
		Success: r.NewStyle().Foreground(ColorSuccess),
		Warning: r.NewStyle().Foreground(ColorWarning),
		Error:   r.NewStyle().Foreground(ColorError),
		Info:    r.NewStyle().Foreground(ColorInfo),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorError).
			Padding(0, 1),
	}
}

// Console serializes writes from the page container, the notification
// renderer and the REPL onto one writer.
//
// # Thread Safety
//
// Safe for concurrent use.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
	styles   Styles
	tty      bool
}

// NewConsole wraps w. Colour is enabled only when w is a terminal.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{w: w, renderer: r, styles: newStyles(r), tty: IsTerminal(w)}
}

// Styles returns the console's styles.
func (c *Console) Styles() Styles { return c.styles }

// Renderer returns the lipgloss renderer bound to the writer.
func (c *Console) Renderer() *lipgloss.Renderer { return c.renderer }

// TTY reports whether output goes to a terminal.
func (c *Console) TTY() bool { return c.tty }

// Println writes one line.
func (c *Console) Println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, s)
}

// Printf writes formatted text.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// IsTerminal reports whether v is a file attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
