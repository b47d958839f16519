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

import (
	"context"
	"strings"
)

// Mouse buttons as reported by LinkClick.Button.
const (
	ButtonPrimary   = 0
	ButtonAuxiliary = 1
	ButtonSecondary = 2
)

// LinkClick is an activation of an in-app link.
type LinkClick struct {
	Href   string
	Target string
	Button int

	Ctrl, Meta, Shift, Alt bool
}

// HandleClick intercepts a link activation. It navigates and reports true
// for plain primary clicks on app-relative links; everything else is left
// to the host (false): modified or non-primary clicks, links opening
// elsewhere, fragments, absolute URLs and mailto:/tel: links.
func (r *Router) HandleClick(ctx context.Context, c LinkClick) bool {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	if !started || !Interceptable(c) {
		return false
	}
	r.Navigate(ctx, c.Href, NavigateOptions{})
	return true
}

// Interceptable reports whether the router should handle c.
func Interceptable(c LinkClick) bool {
	if c.Ctrl || c.Meta || c.Shift || c.Alt || c.Button != ButtonPrimary {
		return false
	}
	if t := strings.TrimSpace(c.Target); t != "" && t != "_self" {
		return false
	}

	href := strings.TrimSpace(c.Href)
	lower := strings.ToLower(href)
	switch {
	case href == "", strings.HasPrefix(href, "#"):
		return false
	case strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(lower, "tel:"):
		return false
	case strings.HasPrefix(href, "//"):
		return false
	case hasScheme(lower):
		return false
	}
	return true
}

// hasScheme reports whether s starts with "scheme:" before any path,
// query or fragment delimiter.
func hasScheme(s string) bool {
	for i, ch := range s {
		switch {
		case ch == ':':
			return i > 0
		case ch == '/' || ch == '?' || ch == '#':
			return false
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9' && i > 0, (ch == '+' || ch == '-' || ch == '.') && i > 0:
		default:
			return false
		}
	}
	return false
}
