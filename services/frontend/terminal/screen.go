// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

const clearScreen = "\x1b[H\x1b[2J"

// Screen is a shell.Container that prints each view to a Console and
// remembers the last one so the REPL can follow its links and run its
// actions.
type Screen struct {
	console *Console
	mem     *shell.MemoryContainer
}

// NewScreen creates a Screen writing to console.
func NewScreen(console *Console) *Screen {
	return &Screen{console: console, mem: shell.NewMemoryContainer()}
}

// Clear forgets the current view and clears a terminal.
func (s *Screen) Clear() {
	s.mem.Clear()
	if s.console.TTY() {
		s.console.Printf("%s", clearScreen)
	}
}

// Render prints v.
func (s *Screen) Render(v shell.View) {
	s.mem.Render(v)
	s.console.Println(RenderView(s.console.Styles(), v))
}

// ScrollTop is a no-op; each view is printed from its title.
func (s *Screen) ScrollTop() { s.mem.ScrollTop() }

// View returns the last rendered view.
func (s *Screen) View() (shell.View, bool) { return s.mem.View() }

// RenderView formats a view as terminal text. Links are numbered from 1
// in display order.
func RenderView(st Styles, v shell.View) string {
	var b strings.Builder

	header := st.Title.Render(v.Title)
	if v.User != "" {
		header += "  " + st.Muted.Render("signed in as "+v.User)
	}
	b.WriteString(header + "\n")

	if len(v.Links) > 0 {
		parts := make([]string, len(v.Links))
		for i, l := range v.Links {
			label := fmt.Sprintf("[%d] %s", i+1, l.Label)
			if l.Active {
				label = st.Active.Render(label)
			}
			parts[i] = label
		}
		b.WriteString(strings.Join(parts, "  ") + "\n")
	}

	for _, blk := range v.Blocks {
		b.WriteString("\n")
		b.WriteString(renderBlock(st, blk))
		b.WriteString("\n")
	}

	if len(v.Actions) > 0 {
		b.WriteString("\n")
		for _, a := range v.Actions {
			line := "  " + st.Key.Render(a.Key) + "  " + a.Label
			var errs []string
			for _, f := range a.Fields {
				if msg, ok := v.Errors[f.Name]; ok {
					errs = append(errs, f.Label+": "+msg)
				}
			}
			b.WriteString(line + "\n")
			for _, e := range errs {
				b.WriteString("      " + st.Error.Render(e) + "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBlock(st Styles, blk shell.Block) string {
	var b strings.Builder
	if blk.Title != "" && blk.Kind != shell.BlockError {
		b.WriteString(st.Heading.Render(blk.Title) + "\n")
	}
	switch blk.Kind {
	case shell.BlockLoading:
		b.WriteString(st.Muted.Render(blk.Text))
	case shell.BlockError:
		body := blk.Text
		if blk.Title != "" {
			body = blk.Title + "\n" + body
		}
		b.WriteString(st.Box.Render(st.Error.Render(body)))
	case shell.BlockStats:
		width := 0
		for _, s := range blk.Stats {
			width = max(width, lipgloss.Width(s.Label))
		}
		for i, s := range blk.Stats {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(st.Muted.Render(fmt.Sprintf("%-*s", width, s.Label)) + "  " + s.Value)
		}
	case shell.BlockTable:
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(st.Muted).
			Headers(blk.Headers...).
			Rows(blk.Rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return st.Heading.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		b.WriteString(t.Render())
	default:
		b.WriteString(blk.Text)
	}
	return b.String()
}
