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

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/notify"
)

// Toasts prints notifications as they appear. Expiry is silent because
// the printed line cannot be withdrawn; the REPL's "notifications"
// command lists what is still active.
type Toasts struct {
	console *Console
}

// NewToasts creates a notify.Renderer bound to console.
func NewToasts(console *Console) *Toasts { return &Toasts{console: console} }

// Insert prints n.
func (t *Toasts) Insert(n notify.Notification) {
	t.console.Println(FormatNotification(t.console.Styles(), n))
}

// Remove does nothing.
func (t *Toasts) Remove(int64) {}

// FormatNotification renders one notification line with its actions.
func FormatNotification(st Styles, n notify.Notification) string {
	icon, style := "i", st.Info
	switch n.Kind {
	case notify.KindSuccess:
		icon, style = "✓", st.Success
	case notify.KindError:
		icon, style = "✗", st.Error
	case notify.KindWarning:
		icon, style = "⚠", st.Warning
	}
	line := style.Render(icon+" "+n.Message) + st.Muted.Render(fmt.Sprintf("  #%d", n.ID))
	if len(n.Actions) > 0 {
		labels := make([]string, len(n.Actions))
		for i, a := range n.Actions {
			labels[i] = fmt.Sprintf("[%d] %s", i, a.Label)
		}
		line += "  " + strings.Join(labels, " ")
	}
	return line
}
