// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package shell hosts page components: it owns the mounted page, checks
// authentication for protected routes and renders the fallback views.
//
// # Page lifecycle
//
// Exactly one page is mounted at a time. Mounting a new page destroys the
// previous one first; a panicking Destroy is logged and ignored. A page
// whose Render fails stays mounted behind an error view with a Retry
// action, and is destroyed on the next navigation like any other.
//
// # Thread Safety
//
// Host is safe for concurrent use, though the router already serializes
// the calls it makes.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/apiclient"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/notify"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/observability"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/router"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/session"
)

// =============================================================================
// Contracts
// =============================================================================

// Page is a mounted page component. Destroy must be idempotent.
type Page interface {
	Render(ctx context.Context, c Container) error
	Destroy()
}

// Navigator is the router surface pages use.
type Navigator interface {
	Navigate(ctx context.Context, path string, opts router.NavigateOptions) router.Outcome
	Back() bool
}

// Session is the session manager surface the shell and pages use.
type Session interface {
	Validate(ctx context.Context) bool
	User() *session.User
	Login(ctx context.Context, cr session.Credentials) (*session.User, error)
	Register(ctx context.Context, reg session.Registration) (*session.User, error)
	Logout(ctx context.Context)
	UpdateProfile(ctx context.Context, u session.User) error
}

// Deps is everything a page may use. It is built fresh for every mount.
type Deps struct {
	API      *apiclient.Client
	Notifier *notify.Center
	Router   Navigator
	Session  Session
	Logger   *logging.Logger

	// User is a snapshot taken at mount time; nil on public pages when
	// signed out.
	User *session.User

	// Match is the route being mounted.
	Match router.Match

	// TakeReturnTo yields the remembered post-login destination.
	TakeReturnTo func(fallback string) string
}

// Factory builds a page for one mount.
type Factory func(Deps) Page

// =============================================================================
// Host
// =============================================================================

// HostOptions collects the host's collaborators.
type HostOptions struct {
	Container Container
	Session   Session
	API       *apiclient.Client
	Notifier  *notify.Center
	Router    Navigator
	NavBar    *NavBar
	Logger    *logging.Logger
	Metrics   *observability.Metrics

	// LoginPath is where unauthenticated visitors of protected routes are
	// sent. Default "/login".
	LoginPath string

	// HomePath is the "Go to home" target of the not-found view.
	// Default "/".
	HomePath string
}

// Host is the page host.
type Host struct {
	container Container
	session   Session
	api       *apiclient.Client
	notifier  *notify.Center
	nav       Navigator
	navbar    *NavBar
	logger    *logging.Logger
	metrics   *observability.Metrics
	loginPath string
	homePath  string

	mu       sync.Mutex
	current  Page
	returnTo string
	notice   int64
}

// NewHost creates a Host with nothing mounted.
func NewHost(opts HostOptions) *Host {
	if opts.Container == nil {
		opts.Container = NewMemoryContainer()
	}
	if opts.NavBar == nil {
		opts.NavBar = NewNavBar(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.HomePath == "" {
		opts.HomePath = "/"
	}
	return &Host{
		container: opts.Container,
		session:   opts.Session,
		api:       opts.API,
		notifier:  opts.Notifier,
		nav:       opts.Router,
		navbar:    opts.NavBar,
		logger:    opts.Logger.With("component", "shell"),
		metrics:   opts.Metrics,
		loginPath: opts.LoginPath,
		homePath:  opts.HomePath,
	}
}

// NavBar returns the navigation bar.
func (h *Host) NavBar() *NavBar { return h.navbar }

// RenderPublic mounts a page that needs no session.
func (h *Host) RenderPublic(ctx context.Context, m router.Match, f Factory) error {
	return h.mount(ctx, m, f, false)
}

// RenderProtected mounts a page that needs a valid session. Without one
// the requested path is remembered, a sign-in notice is shown and the
// login route replaces the current history entry; nothing is mounted.
func (h *Host) RenderProtected(ctx context.Context, m router.Match, f Factory) error {
	if h.session == nil || !h.session.Validate(ctx) {
		if err := ctx.Err(); err != nil {
			// Abandoned navigation; the session is not known to be invalid.
			return nil
		}
		h.mu.Lock()
		h.returnTo = m.URL()
		notice := h.notice
		h.mu.Unlock()

		h.logger.Info("protected route requires sign in", "path", m.Path)
		if h.notifier != nil {
			// One notice while it is still on screen.
			if _, shown := h.notifier.Get(notice); !shown {
				id := h.notifier.Info("Please sign in to continue")
				h.mu.Lock()
				h.notice = id
				h.mu.Unlock()
			}
		}
		if h.nav != nil {
			h.nav.Navigate(ctx, h.loginPath, router.NavigateOptions{Replace: true})
		}
		return nil
	}
	return h.mount(ctx, m, f, true)
}

// RenderNotFound destroys the mounted page and shows the not-found view.
func (h *Host) RenderNotFound(ctx context.Context, m router.Match) error {
	h.destroyCurrent()
	h.navbar.SetActive("")

	view := View{
		Title: "Page not found",
		Blocks: []Block{{
			Kind: BlockText,
			Text: fmt.Sprintf("The page %s does not exist.", m.Path),
		}},
		Actions: []Action{
			{Key: "back", Label: "Go back", Run: func(context.Context, Input) error {
				if h.nav != nil {
					h.nav.Back()
				}
				return nil
			}},
			{Key: "home", Label: "Go to home", Run: func(ctx context.Context, _ Input) error {
				if h.nav != nil {
					h.nav.Navigate(ctx, h.homePath, router.NavigateOptions{})
				}
				return nil
			}},
		},
	}
	h.container.Clear()
	h.container.Render(view)
	h.container.ScrollTop()
	return nil
}

// TakeReturnTo returns and forgets the remembered post-login destination,
// or fallback when none is remembered.
func (h *Host) TakeReturnTo(fallback string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	dest := h.returnTo
	h.returnTo = ""
	if dest == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") || dest == h.loginPath {
		return fallback
	}
	return dest
}

// Current returns the mounted page, or nil.
func (h *Host) Current() Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Close destroys the mounted page.
func (h *Host) Close() { h.destroyCurrent() }

func (h *Host) mount(ctx context.Context, m router.Match, f Factory, chrome bool) error {
	if f == nil {
		return fmt.Errorf("route %s: no page factory", m.Pattern)
	}
	h.destroyCurrent()

	var user *session.User
	if h.session != nil {
		user = h.session.User()
	}
	deps := Deps{
		API:          h.api,
		Notifier:     h.notifier,
		Router:       h.nav,
		Session:      h.session,
		Logger:       h.logger,
		User:         user,
		Match:        m,
		TakeReturnTo: h.TakeReturnTo,
	}
	page := f(deps)
	if page == nil {
		return fmt.Errorf("route %s: factory returned no page", m.Pattern)
	}

	h.mu.Lock()
	h.current = page
	h.mu.Unlock()

	target := h.container
	if chrome {
		h.navbar.SetActive(m.Path)
		if user != nil {
			h.navbar.SetUser(user.DisplayName())
		}
		target = &chromeContainer{inner: h.container, host: h}
	} else {
		h.navbar.SetActive("")
	}

	target.Clear()
	if err := h.renderPage(ctx, page, target); err != nil {
		h.logger.Warn("page render failed", "path", m.Path, "pattern", m.Pattern, "error", err)
		h.metrics.RecordRenderError(m.Pattern)
		target.Render(h.errorView(m, err))
		return nil
	}
	target.ScrollTop()
	return nil
}

func (h *Host) renderPage(ctx context.Context, p Page, c Container) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	return p.Render(ctx, c)
}

func (h *Host) errorView(m router.Match, cause error) View {
	return View{
		Title: "Something went wrong",
		Blocks: []Block{{
			Kind:  BlockError,
			Title: "This page could not be loaded",
			Text:  cause.Error(),
		}},
		Actions: []Action{{
			Key:   "retry",
			Label: "Retry",
			Run: func(ctx context.Context, _ Input) error {
				if h.nav != nil {
					h.nav.Navigate(ctx, m.URL(), router.NavigateOptions{Force: true, Replace: true})
				}
				return nil
			},
		}},
	}
}

func (h *Host) destroyCurrent() {
	h.mu.Lock()
	page := h.current
	h.current = nil
	h.mu.Unlock()

	if page == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("page destroy panicked", "panic", fmt.Sprint(r))
		}
	}()
	page.Destroy()
}

// chromeContainer adds the navigation bar and the logout action to every
// view a protected page renders.
type chromeContainer struct {
	inner Container
	host  *Host
}

func (c *chromeContainer) Clear()     { c.inner.Clear() }
func (c *chromeContainer) ScrollTop() { c.inner.ScrollTop() }

func (c *chromeContainer) Render(v View) {
	nav := c.host.navbar
	v.Links = append(nav.Links(), v.Links...)
	v.User = nav.User()
	if _, ok := v.Action("logout"); !ok && c.host.session != nil {
		v.Actions = append(v.Actions, Action{
			Key:   "logout",
			Label: "Log out",
			Run: func(ctx context.Context, _ Input) error {
				c.host.session.Logout(ctx)
				return nil
			},
		})
	}
	c.inner.Render(v)
}
