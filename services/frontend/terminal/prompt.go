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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

// ErrAborted is returned when the user abandons a prompt.
var ErrAborted = errors.New("prompt aborted")

// Prompter collects values for an action's fields.
type Prompter interface {
	Ask(ctx context.Context, title string, fields []shell.Field) (shell.Input, error)
}

// FormPrompter asks through an interactive huh form.
type FormPrompter struct {
	// Accessible switches huh to line-by-line prompts.
	Accessible bool
}

// Ask runs one form group holding every field.
func (p FormPrompter) Ask(ctx context.Context, title string, fields []shell.Field) (shell.Input, error) {
	if len(fields) == 0 {
		return shell.Input{}, nil
	}
	values := make([]string, len(fields))
	items := make([]huh.Field, len(fields))
	for i, f := range fields {
		values[i] = f.Default
		if len(f.Options) > 0 {
			items[i] = huh.NewSelect[string]().
				Title(f.Label).
				Options(huh.NewOptions(f.Options...)...).
				Value(&values[i])
			continue
		}
		in := huh.NewInput().Title(f.Label).Value(&values[i])
		if f.Secret {
			in = in.EchoMode(huh.EchoModePassword)
		}
		if !f.Optional {
			in = in.Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("%s is required", f.Label)
				}
				return nil
			})
		}
		items[i] = in
	}

	form := huh.NewForm(huh.NewGroup(items...).Title(title)).WithAccessible(p.Accessible)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrAborted
		}
		return nil, fmt.Errorf("prompt: %w", err)
	}

	out := make(shell.Input, len(fields))
	for i, f := range fields {
		out[f.Name] = values[i]
	}
	return out, nil
}

// LinePrompter reads one line per field. It serves piped input and
// tests. Secret fields are read like any other; there is no echo to hide.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter reads from r and writes prompts to w.
func NewLinePrompter(r io.Reader, w io.Writer) *LinePrompter {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &LinePrompter{in: br, out: w}
}

// Reader exposes the buffered reader so a REPL can share it.
func (p *LinePrompter) Reader() *bufio.Reader { return p.in }

// Ask prompts for each field in order. An empty answer takes the
// default. Required fields and option lists are re-asked until valid.
func (p *LinePrompter) Ask(ctx context.Context, title string, fields []shell.Field) (shell.Input, error) {
	if title != "" && len(fields) > 0 {
		fmt.Fprintln(p.out, title)
	}
	out := make(shell.Input, len(fields))
	for _, f := range fields {
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fmt.Fprint(p.out, promptLabel(f))
			line, err := p.in.ReadString('\n')
			if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
				if errors.Is(err, io.EOF) {
					return nil, ErrAborted
				}
				return nil, fmt.Errorf("reading %s: %w", f.Name, err)
			}
			v := strings.TrimRight(line, "\r\n")
			if v == "" {
				v = f.Default
			}
			if len(f.Options) > 0 && v != "" && !slices.Contains(f.Options, v) {
				fmt.Fprintf(p.out, "  choose one of: %s\n", strings.Join(f.Options, ", "))
				continue
			}
			if v == "" && !f.Optional {
				fmt.Fprintf(p.out, "  %s is required\n", f.Label)
				continue
			}
			out[f.Name] = v
			break
		}
	}
	return out, nil
}

func promptLabel(f shell.Field) string {
	s := f.Label
	if len(f.Options) > 0 {
		s += " (" + strings.Join(f.Options, "/") + ")"
	}
	if f.Default != "" && !f.Secret {
		s += " [" + f.Default + "]"
	}
	return s + ": "
}
