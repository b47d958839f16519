// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package frontend wires the FinTrack client core together.
//
// New builds every component exactly once and injects it where it is
// needed: the event bus, API client, notification center, session
// manager, router and page host. Nothing is global; two Apps in one
// process are fully independent.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/apiclient"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/config"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/events"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/notify"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/observability"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/pages"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/router"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/session"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/shell"
)

const (
	// HomePath redirects to the dashboard.
	HomePath = "/"

	// LoginPath is where signed-out visitors land.
	LoginPath = "/login"
)

// Options are the platform pieces an App runs on. Every field is
// optional.
type Options struct {
	Config config.Config

	// Container receives page views. Nil uses a shell.MemoryContainer.
	Container shell.Container

	// Renderer presents notifications. Nil renders nothing.
	Renderer notify.Renderer

	// History is the location stack. Nil starts an in-memory history at "/".
	History router.History

	// Durable overrides the "remember me" store. Nil opens badger in
	// Config.Session.StorageDir, or keeps it in memory when that is empty.
	Durable session.Store

	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *logging.Logger
	Registry   *prometheus.Registry
	Tracer     trace.Tracer
}

// App is one running client.
//
// # Thread Safety
//
// Components are individually safe for concurrent use.
type App struct {
	Config   config.Config
	Logger   *logging.Logger
	Metrics  *observability.Metrics
	Bus      *events.Bus
	API      *apiclient.Client
	Notifier *notify.Center
	Session  *session.Manager
	Router   *router.Router
	Host     *shell.Host

	closers  []func()
	explicit atomic.Bool

	noticeMu sync.Mutex
	notices  map[string]int64
}

// New wires an App. Call Start to restore the session and resolve the
// initial location, and Close when done.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg.API.BaseURL == "" {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	a := &App{
		Config:  cfg,
		Logger:  logger.With("component", "app"),
		Metrics: observability.NewMetrics(opts.Registry),
		notices: map[string]int64{},
	}
	a.Bus = events.NewBus(logger)

	clientOpts := []apiclient.Option{
		apiclient.WithBus(a.Bus),
		apiclient.WithLogger(logger),
		apiclient.WithMetrics(a.Metrics),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Tracer != nil {
		clientOpts = append(clientOpts, apiclient.WithTracer(opts.Tracer))
	}
	a.API = apiclient.New(apiclient.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		MaxConcurrency:    cfg.API.MaxConcurrency,
	}, clientOpts...)

	renderer := opts.Renderer
	if renderer == nil {
		renderer = notify.NopRenderer{}
	}
	a.Notifier = notify.New(opts.Clock, countingRenderer{inner: renderer, metrics: a.Metrics}, notify.Config{
		DefaultDuration: cfg.Notifications.DefaultDuration,
		ErrorDuration:   cfg.Notifications.ErrorDuration,
	}, logger)

	durable, err := a.openDurable(opts, logger)
	if err != nil {
		return nil, err
	}

	a.Session = session.New(a.API, session.Options{
		Durable:   durable,
		Ephemeral: session.NewMemoryStore(),
		Bus:       a.Bus,
		Clock:     opts.Clock,
		Logger:    logger,
		Metrics:   a.Metrics,
		Config:    session.Config{ValidateInterval: cfg.Session.ValidateInterval},
	})
	a.closers = append(a.closers, a.Session.Close)

	history := opts.History
	if history == nil {
		history = router.NewMemoryHistory(HomePath)
	}
	a.Router = router.New(router.Options{History: history, Logger: logger, Metrics: a.Metrics})

	a.Host = shell.NewHost(shell.HostOptions{
		Container: opts.Container,
		Session:   &appSession{Manager: a.Session, app: a},
		API:       a.API,
		Notifier:  a.Notifier,
		Router:    a.Router,
		Logger:    logger,
		Metrics:   a.Metrics,
		LoginPath: LoginPath,
		HomePath:  HomePath,
	})

	if err := a.registerRoutes(); err != nil {
		a.Close()
		return nil, err
	}
	a.subscribe()
	return a, nil
}

func (a *App) openDurable(opts Options, logger *logging.Logger) (session.Store, error) {
	if opts.Durable != nil {
		return opts.Durable, nil
	}
	dir := config.ExpandHome(a.Config.Session.StorageDir)
	if dir == "" {
		return session.NewMemoryStore(), nil
	}
	store, err := session.OpenBadgerStore(session.BadgerConfig{Path: dir, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn("closing session store", "error", err)
		}
	})
	return store, nil
}

func (a *App) registerRoutes() error {
	err := a.Router.Register(HomePath, func(ctx context.Context, _ router.Match) error {
		a.Router.Navigate(ctx, pages.DefaultLanding, router.NavigateOptions{Replace: true})
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range pages.Catalog() {
		handler := func(ctx context.Context, m router.Match) error {
			return a.Host.RenderPublic(ctx, m, e.Factory)
		}
		if e.Protected {
			handler = func(ctx context.Context, m router.Match) error {
				return a.Host.RenderProtected(ctx, m, e.Factory)
			}
		}
		if err := a.Router.Register(e.Pattern, handler); err != nil {
			return fmt.Errorf("route %s: %w", e.Name, err)
		}
	}
	a.Router.SetNotFound(a.Host.RenderNotFound)
	return nil
}

// subscribe connects session changes and global signals to navigation
// and notifications.
func (a *App) subscribe() {
	a.closers = append(a.closers, a.Session.Subscribe(func(u *session.User) {
		nav := a.Host.NavBar()
		if u != nil {
			nav.SetUser(u.DisplayName())
			return
		}
		nav.SetUser("")
		ctx := context.Background()
		if a.explicit.Swap(false) {
			a.Notifier.Info("You have been signed out.")
			a.Router.Navigate(ctx, LoginPath, router.NavigateOptions{Replace: true})
			return
		}
		// The session ended on its own. Re-resolving the current location
		// lets a protected page remember itself and send the user to sign in.
		a.Router.Navigate(ctx, a.Router.History().Current(), router.NavigateOptions{Force: true, Replace: true})
	}))

	a.closers = append(a.closers,
		a.Bus.Subscribe(events.Forbidden, func(events.Event) {
			a.notifyOnce("forbidden", notify.KindWarning, "You don't have permission to do that.")
		}),
		a.Bus.Subscribe(events.ServerError, func(ev events.Event) {
			msg := "The server ran into a problem. Please try again."
			if ev.Detail != "" {
				msg = "Server error: " + ev.Detail
			}
			a.notifyOnce("server_error", notify.KindError, msg)
		}),
	)
}

// notifyOnce shows a notification unless one with the same key is still
// visible.
func (a *App) notifyOnce(key string, kind notify.Kind, msg string) {
	a.noticeMu.Lock()
	defer a.noticeMu.Unlock()
	if id, ok := a.notices[key]; ok {
		if _, shown := a.Notifier.Get(id); shown {
			return
		}
	}
	a.notices[key] = a.Notifier.Show(msg, kind, notify.Options{})
}

// Start restores a persisted session and resolves the current location.
func (a *App) Start(ctx context.Context) router.Outcome {
	if a.Session.Restore(ctx) {
		a.Logger.Info("session restored")
	}
	return a.Router.Start(ctx)
}

// Close stops the router, destroys the mounted page and releases the
// session store. It is safe to call more than once.
func (a *App) Close() {
	a.Router.Stop()
	if a.Host != nil {
		a.Host.Close()
	}
	closers := a.closers
	a.closers = nil
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	a.Notifier.Clear()
}

// Click follows a link the way a primary-button click on it would.
func (a *App) Click(ctx context.Context, href string) bool {
	return a.Router.HandleClick(ctx, router.LinkClick{Href: href, Button: router.ButtonPrimary})
}

// ErrNoAction is returned by Do when the current view lacks the action.
var ErrNoAction = errors.New("no such action on this page")

// Do runs an action of the current view. view is the view as last
// rendered into the app's container.
func (a *App) Do(ctx context.Context, view shell.View, key string, in shell.Input) error {
	act, ok := view.Action(key)
	if !ok || act.Run == nil {
		return fmt.Errorf("%w: %s", ErrNoAction, key)
	}
	return act.Run(ctx, in)
}

// appSession marks logouts started from the UI so the App can tell them
// apart from expiry.
type appSession struct {
	*session.Manager
	app *App
}

func (s *appSession) Logout(ctx context.Context) {
	if s.Manager.State() != session.Anonymous {
		s.app.explicit.Store(true)
	}
	s.Manager.Logout(ctx)
	s.app.explicit.Store(false)
}

// countingRenderer records every shown notification before presenting it.
type countingRenderer struct {
	inner   notify.Renderer
	metrics *observability.Metrics
}

func (r countingRenderer) Insert(n notify.Notification) {
	r.metrics.RecordNotification(string(n.Kind))
	r.inner.Insert(n)
}

func (r countingRenderer) Remove(id int64) { r.inner.Remove(id) }
