// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router maps URL paths to handlers and drives navigation history.
//
// # Description
//
// Routes are literal ("/dashboard") or parameterized ("/transactions/:id").
// Literal routes are found by exact lookup; otherwise parameterized routes
// are tried in registration order and the first full match wins. A path
// with no match goes to the not-found handler.
//
// # Serialization
//
// At most one handler runs at a time. A Navigate issued while another is
// in flight, from a handler or from another goroutine, is queued and run
// after the current handler returns. A single top-level call drains at
// most MaxChained queued navigations; the rest are dropped with a warning,
// which breaks redirect loops.
//
// # Thread Safety
//
// Router is safe for concurrent use. Handlers run without the lock held.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/observability"
)

// MaxChained bounds the queued navigations drained by one top-level call.
const MaxChained = 16

// ErrNoRoute is passed to the not-found handler's logs when nothing matched.
var ErrNoRoute = errors.New("no route matches path")

// =============================================================================
// Types
// =============================================================================

// Match describes a resolved path.
type Match struct {
	// Path is the normalized path without query.
	Path string

	// Pattern is the matched route pattern; empty for not-found.
	Pattern string

	// Params holds ":name" captures, URL-unescaped.
	Params map[string]string

	Query url.Values
}

// Param returns a captured parameter.
func (m Match) Param(name string) string { return m.Params[name] }

// URL returns Path with its query string.
func (m Match) URL() string {
	if len(m.Query) == 0 {
		return m.Path
	}
	return m.Path + "?" + m.Query.Encode()
}

// Handler renders a matched route.
type Handler func(ctx context.Context, m Match) error

// NavigateOptions tunes a Navigate call.
type NavigateOptions struct {
	// Replace overwrites the current history entry instead of pushing.
	Replace bool

	// Force re-resolves even when the path equals the current location.
	Force bool
}

// Outcome reports what Navigate did.
type Outcome int

const (
	// OutcomeCompleted: history updated and a handler ran.
	OutcomeCompleted Outcome = iota
	// OutcomeSkipped: the path is already current; nothing happened.
	OutcomeSkipped
	// OutcomeQueued: another navigation is in flight; this one runs after.
	OutcomeQueued
	// OutcomeDropped: the chain limit was hit and the request discarded.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeQueued:
		return "queued"
	case OutcomeDropped:
		return "dropped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Stats are cumulative router counters.
type Stats struct {
	Resolved int64
	NotFound int64
	Failed   int64
	Dropped  int64
}

type route struct {
	pattern string
	re      *regexp.Regexp
	names   []string
	handler Handler
}

type request struct {
	path string
	opts NavigateOptions
	pop  bool
	ctx  context.Context
}

// Options collects the router's collaborators.
type Options struct {
	History History
	Logger  *logging.Logger
	Metrics *observability.Metrics
}

// =============================================================================
// Router
// =============================================================================

// Router resolves paths and owns the navigating flag.
type Router struct {
	history History
	logger  *logging.Logger
	metrics *observability.Metrics

	mu         sync.Mutex
	exact      map[string]*route
	routes     []*route
	notFound   Handler
	current    string
	navigating bool
	queue      []request
	started    bool
	baseCtx    context.Context
	unlisten   func()

	resolved atomic.Int64
	missed   atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// New creates a Router. A nil History gets a MemoryHistory at "/".
func New(opts Options) *Router {
	if opts.History == nil {
		opts.History = NewMemoryHistory("/")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Router{
		history: opts.History,
		logger:  opts.Logger.With("component", "router"),
		metrics: opts.Metrics,
		exact:   make(map[string]*route),
		baseCtx: context.Background(),
	}
}

// History returns the history the router drives.
func (r *Router) History() History { return r.history }

// Register binds pattern to handler. Registering an identical pattern
// again replaces the handler and keeps the original scan position.
func (r *Router) Register(pattern string, handler Handler) error {
	pattern, _ = splitQuery(Normalize(pattern))

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rt := range r.routes {
		if rt.pattern == pattern {
			rt.handler = handler
			return nil
		}
	}

	rt := &route{pattern: pattern, handler: handler}
	if strings.Contains(pattern, "/:") {
		re, names, err := compilePattern(pattern)
		if err != nil {
			return err
		}
		rt.re, rt.names = re, names
	} else {
		r.exact[pattern] = rt
	}
	r.routes = append(r.routes, rt)
	return nil
}

// MustRegister is Register that panics on an invalid pattern.
func (r *Router) MustRegister(pattern string, handler Handler) {
	if err := r.Register(pattern, handler); err != nil {
		panic(err)
	}
}

// SetNotFound sets the handler for unmatched paths and failed handlers.
func (r *Router) SetNotFound(handler Handler) {
	r.mu.Lock()
	r.notFound = handler
	r.mu.Unlock()
}

// Start subscribes to history pops, enables link interception and
// resolves the current location. ctx is used for pop-driven resolutions.
func (r *Router) Start(ctx context.Context) Outcome {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return OutcomeSkipped
	}
	r.started = true
	r.baseCtx = ctx
	r.mu.Unlock()

	unlisten := r.history.Listen(r.onPop)
	r.mu.Lock()
	r.unlisten = unlisten
	r.mu.Unlock()

	return r.submit(request{path: r.history.Current(), pop: true, ctx: ctx})
}

// Stop detaches from history and disables link interception.
func (r *Router) Stop() {
	r.mu.Lock()
	r.started = false
	unlisten := r.unlisten
	r.unlisten = nil
	r.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
}

// Current returns the path of the last resolved route, "" before any.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigating reports whether a handler is running.
func (r *Router) Navigating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.navigating
}

// Stats returns cumulative counters.
func (r *Router) Stats() Stats {
	return Stats{
		Resolved: r.resolved.Load(),
		NotFound: r.missed.Load(),
		Failed:   r.failed.Load(),
		Dropped:  r.dropped.Load(),
	}
}

// Navigate moves to path.
//
// # Description
//
// The path is normalized first (leading slash added, trailing slash
// removed, fragment dropped, query kept). When it equals the current
// history location and Force is unset nothing happens. Otherwise history
// is pushed or replaced and the route is resolved.
//
// # Outputs
//
//   - Outcome: Completed, Skipped, or Queued when a navigation is in flight.
func (r *Router) Navigate(ctx context.Context, path string, opts NavigateOptions) Outcome {
	return r.submit(request{path: path, opts: opts, ctx: ctx})
}

// Back steps history back; the pop resolves the route. It reports false at
// the first entry.
func (r *Router) Back() bool { return r.history.Back() }

// Forward steps history forward.
func (r *Router) Forward() bool { return r.history.Forward() }

func (r *Router) onPop(path string) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	ctx := r.baseCtx
	r.mu.Unlock()

	r.submit(request{path: path, pop: true, ctx: ctx})
}

// submit runs req now, or queues it when a navigation is in flight, and
// then drains the queue.
func (r *Router) submit(req request) Outcome {
	r.mu.Lock()
	if r.navigating {
		r.queue = append(r.queue, req)
		r.mu.Unlock()
		r.metrics.RecordNavigation(OutcomeQueued.String())
		return OutcomeQueued
	}
	r.navigating = true
	r.mu.Unlock()

	settled := false
	defer func() {
		if settled {
			return
		}
		r.mu.Lock()
		r.navigating = false
		r.queue = nil
		r.mu.Unlock()
	}()

	outcome := r.run(req)
	r.metrics.RecordNavigation(outcome.String())

	for chained := 0; ; chained++ {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.navigating = false
			settled = true
			r.mu.Unlock()
			break
		}
		if chained >= MaxChained {
			dropped := len(r.queue)
			r.queue = nil
			r.navigating = false
			settled = true
			r.mu.Unlock()
			r.dropped.Add(int64(dropped))
			r.metrics.RecordNavigation(OutcomeDropped.String())
			r.logger.Warn("navigation chain limit reached; dropping queued navigations",
				"limit", MaxChained, "dropped", dropped)
			break
		}
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.metrics.RecordNavigation(r.run(next).String())
	}
	return outcome
}

func (r *Router) run(req request) Outcome {
	full := Normalize(req.path)
	ctx := req.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if !req.pop {
		if !req.opts.Force && full == r.history.Current() {
			return OutcomeSkipped
		}
		if req.opts.Replace {
			r.history.Replace(full)
		} else if full != r.history.Current() {
			r.history.Push(full)
		}
	}

	r.resolve(ctx, full)
	return OutcomeCompleted
}

// resolve finds the handler for full and invokes it. A failing handler
// falls back to the not-found handler with the same match.
func (r *Router) resolve(ctx context.Context, full string) {
	path, rawQuery := splitQuery(full)
	query, _ := url.ParseQuery(rawQuery)

	r.mu.Lock()
	handler, m := r.lookupLocked(path)
	m.Query = query
	notFound := r.notFound
	r.current = path
	r.mu.Unlock()

	if handler == nil {
		r.missed.Inc()
		r.logger.Debug("no route", "path", path)
		r.invokeNotFound(ctx, notFound, m, ErrNoRoute)
		return
	}

	if err := r.invoke(ctx, handler, m); err != nil {
		r.failed.Inc()
		r.logger.Warn("route handler failed", "path", path, "pattern", m.Pattern, "error", err)
		r.invokeNotFound(ctx, notFound, m, err)
		return
	}
	r.resolved.Inc()
}

func (r *Router) invokeNotFound(ctx context.Context, h Handler, m Match, cause error) {
	if h == nil {
		r.logger.Warn("no not-found handler", "path", m.Path, "cause", cause)
		return
	}
	if err := r.invoke(ctx, h, m); err != nil {
		r.logger.Error("not-found handler failed", "path", m.Path, "error", err)
	}
}

func (r *Router) invoke(ctx context.Context, h Handler, m Match) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, m)
}

func (r *Router) lookupLocked(path string) (Handler, Match) {
	if rt, ok := r.exact[path]; ok {
		return rt.handler, Match{Path: path, Pattern: rt.pattern, Params: map[string]string{}}
	}
	for _, rt := range r.routes {
		if rt.re == nil {
			continue
		}
		sub := rt.re.FindStringSubmatch(path)
		if sub == nil {
			continue
		}
		params := make(map[string]string, len(rt.names))
		for i, name := range rt.names {
			v, err := url.PathUnescape(sub[i+1])
			if err != nil {
				v = sub[i+1]
			}
			params[name] = v
		}
		return rt.handler, Match{Path: path, Pattern: rt.pattern, Params: params}
	}
	return nil, Match{Path: path, Params: map[string]string{}}
}

// =============================================================================
// Paths
// =============================================================================

// Normalize canonicalizes a navigation target: leading slash added,
// trailing slashes removed except for the root, fragment dropped, query
// kept.
func Normalize(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	path, query := splitQuery(raw)

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	if query != "" {
		return path + "?" + query
	}
	return path
}

func splitQuery(s string) (string, string) {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func compilePattern(pattern string) (*regexp.Regexp, []string, error) {
	var (
		b     strings.Builder
		names []string
	)
	b.WriteString("^")
	for _, seg := range strings.Split(strings.TrimPrefix(pattern, "/"), "/") {
		b.WriteString("/")
		if strings.HasPrefix(seg, ":") {
			name := seg[1:]
			if !paramName.MatchString(name) {
				return nil, nil, fmt.Errorf("route %q: invalid parameter name %q", pattern, name)
			}
			names = append(names, name)
			b.WriteString("([^/]+)")
			continue
		}
		b.WriteString(regexp.QuoteMeta(seg))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, fmt.Errorf("route %q: %w", pattern, err)
	}
	return re, names, nil
}
