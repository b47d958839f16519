// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apiclient is the uniform HTTP gateway to the backend API.
//
// # Description
//
// Every request attaches the current bearer token and a request ID, plus
// the JSON content type when it carries a JSON body, and resolves to a Result instead of an error: network
// failures, HTTP failures and cancellations are all data. Cross-cutting
// statuses are broadcast on the event bus:
//
//   - 401: the token is cleared and one events.Unauthorized is published
//   - 403: events.Forbidden, token kept
//   - 5xx: events.ServerError with the error detail
//
// The client holds a mirror of the access token. The session manager is
// its only writer apart from the 401 path clearing it.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/events"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/observability"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultTimeout bounds a single request when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxConcurrency bounds Batch when Config.MaxConcurrency is zero.
	DefaultMaxConcurrency = 4

	// RequestIDHeader carries the per-request correlation ID.
	RequestIDHeader = "X-Request-ID"
)

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to every request path, e.g. "http://localhost:5000".
	BaseURL string

	// Timeout bounds each request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests. Zero disables it.
	RequestsPerSecond float64

	// MaxConcurrency bounds the number of in-flight Batch calls.
	MaxConcurrency int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBus sets the bus that receives 401/403/5xx signals.
func WithBus(bus *events.Bus) Option {
	return func(c *Client) { c.bus = bus }
}

// WithLogger sets the client logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request counters and latencies.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer sets the tracer used for per-request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// =============================================================================
// Request and Result
// =============================================================================

// RequestOptions tunes one request.
type RequestOptions struct {
	// Headers are added after the defaults and may override them.
	Headers map[string]string

	// Query is encoded onto the URL.
	Query url.Values

	// Token overrides the stored bearer token for this request.
	Token string

	// SuppressAuthSignal keeps a 401 from clearing the token and
	// publishing events.Unauthorized. Login and refresh calls set it.
	SuppressAuthSignal bool
}

// Result is the outcome of a request.
type Result struct {
	Success bool

	// Status is the HTTP status, or zero when no response arrived.
	Status int

	// Data is the JSON payload. For envelopes of the form
	// {"success": ..., "data": ..., "error": ...} it is the inner data.
	Data json.RawMessage

	// Text holds non-JSON response bodies.
	Text string

	// Error is a human readable failure message.
	Error string

	// Cancelled reports that the caller aborted the request.
	Cancelled bool
}

// Decode unmarshals Data into v.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return errors.New("result has no JSON data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}

// Field returns a top-level string field of a JSON object payload.
func (r Result) Field(name string) string {
	var m map[string]any
	if json.Unmarshal(r.Data, &m) != nil {
		return ""
	}
	s, _ := m[name].(string)
	return s
}

// =============================================================================
// Client
// =============================================================================

// Client sends requests to the backend API.
type Client struct {
	config  Config
	http    *http.Client
	bus     *events.Bus
	logger  *logging.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	limiter *rate.Limiter

	mu    sync.RWMutex
	token string
}

// New creates a Client.
//
// # Inputs
//
//   - config: Base URL, timeout, throttling and batch limits.
//   - opts: Optional collaborators; unset ones get inert defaults.
//
// # Outputs
//
//   - *Client: Ready to use; holds no token.
func New(config Config, opts ...Option) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{config: config}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.bus == nil {
		c.bus = events.NewBus(nil)
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	c.logger = c.logger.With("component", "apiclient")
	if c.tracer == nil {
		c.tracer = otel.Tracer(observability.TracerName)
	}
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return c
}

// SetToken stores the bearer token sent with later requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken drops the stored bearer token.
func (c *Client) ClearToken() { c.SetToken("") }

// Token returns the stored bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// HasToken reports whether a bearer token is stored.
func (c *Client) HasToken() bool { return c.Token() != "" }

// Get issues a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) Result {
	return c.Request(ctx, http.MethodGet, path, nil, &RequestOptions{Query: query})
}

// Post issues a POST with a JSON or multipart body.
func (c *Client) Post(ctx context.Context, path string, body any) Result {
	return c.Request(ctx, http.MethodPost, path, body, nil)
}

// Put issues a PUT with a JSON or multipart body.
func (c *Client) Put(ctx context.Context, path string, body any) Result {
	return c.Request(ctx, http.MethodPut, path, body, nil)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) Result {
	return c.Request(ctx, http.MethodDelete, path, nil, nil)
}

// Request performs one HTTP exchange.
//
// # Description
//
// body may be nil, a *MultipartBody (sent as-is), or any value that is
// encoded as JSON. The call never returns an error; inspect the Result.
//
// # Inputs
//
//   - ctx: Cancelling it yields Result{Cancelled: true}.
//   - method, path: path is relative to Config.BaseURL.
//   - body: Request payload.
//   - opts: Optional per-request settings; may be nil.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts *RequestOptions) Result {
	if opts == nil {
		opts = &RequestOptions{}
	}
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "api "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	res := c.do(ctx, method, path, body, opts)

	span.SetAttributes(attribute.Int("http.response.status_code", res.Status))
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
	}
	c.metrics.RecordRequest(method, res.Status, res.Cancelled, time.Since(start).Seconds())
	c.signal(path, res, opts)
	return res
}

func (c *Client) do(ctx context.Context, method, path string, body any, opts *RequestOptions) Result {
	if err := ctx.Err(); err != nil {
		return cancelled()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return cancelled()
			}
			return Result{Error: fmt.Sprintf("rate limiter: %v", err)}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body, opts)
	if err != nil {
		return Result{Error: err.Error()}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(req.Context().Err(), context.Canceled) {
			return cancelled()
		}
		c.logger.Warn("request failed", "method", method, "path", path, "error", err)
		return Result{Error: fmt.Sprintf("network error: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return cancelled()
		}
		return Result{Status: resp.StatusCode, Error: fmt.Sprintf("reading response: %v", err)}
	}

	res := decodeResponse(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get(RequestIDHeader),
	)
	return res
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, opts *RequestOptions) (*http.Request, error) {
	target := c.config.BaseURL + path
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case *MultipartBody:
		reader = bytes.NewReader(b.data)
		contentType = b.contentType
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	token := opts.Token
	if token == "" {
		token = c.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// signal publishes the cross-cutting events for a finished request.
func (c *Client) signal(path string, res Result, opts *RequestOptions) {
	switch {
	case res.Status == http.StatusUnauthorized:
		if opts.SuppressAuthSignal {
			return
		}
		c.ClearToken()
		c.metrics.RecordSignal(string(events.Unauthorized))
		c.bus.Publish(events.Event{Kind: events.Unauthorized, Status: res.Status, Path: path})
	case res.Status == http.StatusForbidden:
		c.metrics.RecordSignal(string(events.Forbidden))
		c.bus.Publish(events.Event{Kind: events.Forbidden, Status: res.Status, Path: path, Detail: res.Error})
	case res.Status >= 500:
		c.metrics.RecordSignal(string(events.ServerError))
		c.bus.Publish(events.Event{Kind: events.ServerError, Status: res.Status, Path: path, Detail: res.Error})
	}
}

// =============================================================================
// Response decoding
// =============================================================================

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decodeResponse(status int, contentType string, raw []byte) Result {
	ok := status >= 200 && status < 300
	res := Result{Success: ok, Status: status}

	if !isJSON(contentType) {
		res.Text = string(raw)
		if !ok {
			res.Error = httpError(status, res.Text)
		}
		return res
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		if !ok {
			res.Error = httpError(status, "")
		}
		return res
	}

	var env envelope
	isObject := trimmed[0] == '{' && json.Unmarshal(trimmed, &env) == nil
	if isObject && env.Success != nil {
		res.Success = ok && *env.Success
		res.Data = env.Data
		res.Error = firstNonEmpty(env.Error, env.Message)
	} else {
		res.Data = json.RawMessage(trimmed)
		if !ok && isObject {
			res.Error = firstNonEmpty(env.Error, env.Message)
		}
	}
	if !res.Success && res.Error == "" {
		res.Error = httpError(status, "")
	}
	return res
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func httpError(status int, text string) string {
	if text = strings.TrimSpace(text); text != "" && len(text) < 200 {
		return text
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func cancelled() Result {
	return Result{Cancelled: true, Error: "request cancelled"}
}
