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
	"strings"
	"sync"
)

// DefaultLinks are the primary navigation entries.
func DefaultLinks() []Link {
	return []Link{
		{Label: "Dashboard", Href: "/dashboard"},
		{Label: "Transactions", Href: "/transactions"},
		{Label: "Budgets", Href: "/budgets"},
		{Label: "Analytics", Href: "/analytics"},
	}
}

// NavBar tracks the active navigation link and the signed-in user.
type NavBar struct {
	mu     sync.Mutex
	links  []Link
	active string
	user   string
}

// NewNavBar creates a NavBar. Nil links use DefaultLinks.
func NewNavBar(links []Link) *NavBar {
	if links == nil {
		links = DefaultLinks()
	}
	return &NavBar{links: append([]Link(nil), links...)}
}

// SetActive marks the link owning path as active. A link owns its own
// path and everything below it.
func (n *NavBar) SetActive(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active = ""
	for _, l := range n.links {
		if path == l.Href || strings.HasPrefix(path, l.Href+"/") {
			n.active = l.Href
			return
		}
	}
}

// Active returns the href of the active link, or "".
func (n *NavBar) Active() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// SetUser sets the displayed user name.
func (n *NavBar) SetUser(name string) {
	n.mu.Lock()
	n.user = name
	n.mu.Unlock()
}

// User returns the displayed user name.
func (n *NavBar) User() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.user
}

// Links returns the links with Active set.
func (n *NavBar) Links() []Link {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Link, len(n.links))
	for i, l := range n.links {
		l.Active = l.Href == n.active
		out[i] = l
	}
	return out
}
