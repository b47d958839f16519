// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pages holds the page components mounted by the shell.
//
// Every page embeds base, which gives it an idempotent Destroy that
// cancels the page's in-flight requests. Actions re-render through the
// container captured at Render time and become no-ops once the page is
// destroyed.
package pages

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/atomic"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/validation"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/apiclient"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/router"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

// ErrPageClosed is returned by actions of a destroyed page.
var ErrPageClosed = errors.New("page is no longer mounted")

var validate = validation.New()

// =============================================================================
// Base
// =============================================================================

type base struct {
	deps      shell.Deps
	token     *apiclient.CancelToken
	once      sync.Once
	destroyed atomic.Bool

	mu        sync.Mutex
	container shell.Container
}

func (b *base) init(d shell.Deps) {
	b.deps = d
	b.token = apiclient.NewCancelToken(context.Background())
}

// Destroy cancels in-flight requests. Calling it again does nothing.
func (b *base) Destroy() {
	b.once.Do(func() {
		b.destroyed.Store(true)
		b.token.Cancel()
	})
}

// Destroyed reports whether Destroy ran.
func (b *base) Destroyed() bool { return b.destroyed.Load() }

// scope returns a context cancelled by either ctx or Destroy.
func (b *base) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.token.Context(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (b *base) attach(c shell.Container) {
	b.mu.Lock()
	b.container = c
	b.mu.Unlock()
}

// show renders v unless the page was destroyed.
func (b *base) show(v shell.View) {
	if b.Destroyed() {
		return
	}
	b.mu.Lock()
	c := b.container
	b.mu.Unlock()
	if c != nil {
		c.Render(v)
	}
}

func (b *base) navigate(ctx context.Context, path string, opts router.NavigateOptions) {
	if b.deps.Router != nil {
		b.deps.Router.Navigate(ctx, path, opts)
	}
}

// reload re-resolves the current route in place.
func (b *base) reload(ctx context.Context) {
	b.navigate(ctx, b.deps.Match.URL(), router.NavigateOptions{Force: true, Replace: true})
}

func (b *base) success(msg string) {
	if b.deps.Notifier != nil {
		b.deps.Notifier.Success(msg)
	}
}

func (b *base) failure(msg string) {
	if b.deps.Notifier != nil {
		b.deps.Notifier.Error(msg)
	}
}

func (b *base) currency() string {
	if b.deps.User != nil && b.deps.User.Currency != "" {
		return b.deps.User.Currency
	}
	return "USD"
}

// guard wraps an action so it refuses to run after Destroy.
func (b *base) guard(run func(ctx context.Context, in shell.Input) error) func(context.Context, shell.Input) error {
	return func(ctx context.Context, in shell.Input) error {
		if b.Destroyed() {
			return ErrPageClosed
		}
		return run(ctx, in)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func loading(title string) shell.View {
	return shell.View{Title: title, Blocks: []shell.Block{{Kind: shell.BlockLoading, Text: "Loading..."}}}
}

func errorBlock(title string, res apiclient.Result) shell.Block {
	return shell.Block{Kind: shell.BlockError, Title: title, Text: res.Error}
}

func retryAction(b *base) shell.Action {
	return shell.Action{Key: "retry", Label: "Retry", Run: b.guard(func(ctx context.Context, _ shell.Input) error {
		b.reload(ctx)
		return nil
	})}
}

// mergeQuery returns path with q applied over the match's query.
func mergeQuery(m router.Match, changes map[string]string) string {
	q := url.Values{}
	for k, vs := range m.Query {
		q[k] = append([]string(nil), vs...)
	}
	for k, v := range changes {
		if v == "" {
			q.Del(k)
			continue
		}
		q.Set(k, v)
	}
	if len(q) == 0 {
		return m.Path
	}
	return m.Path + "?" + q.Encode()
}

var currencySymbols = map[string]string{
	"USD": "$", "EUR": "€", "GBP": "£", "INR": "₹", "JPY": "¥",
	"CAD": "CA$", "AUD": "A$",
}

// formatMoney renders d with grouped thousands and two decimals.
func formatMoney(d decimal.Decimal, currency string) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, ch := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	grouped := b.String() + "." + frac

	sym, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		sym = strings.ToUpper(currency) + " "
	}
	if neg {
		return "-" + sym + grouped
	}
	return sym + grouped
}

func percent(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(1) + "%"
}
