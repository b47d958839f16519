// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/events"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/observability"
)

// ============================================================================
// Helpers
// ============================================================================

type signalRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *signalRecorder) record(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *signalRecorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *signalRecorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	bus := events.NewBus(nil)
	rec := &signalRecorder{}
	for _, k := range []events.Kind{events.Unauthorized, events.Forbidden, events.ServerError} {
		bus.Subscribe(k, rec.record)
	}
	opts = append([]Option{WithBus(bus)}, opts...)
	return New(Config{BaseURL: srv.URL + "/"}, opts...), rec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ============================================================================
// Request
// ============================================================================

func TestRequest_SetsHeaders(t *testing.T) {
	var got http.Header
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	})
	c.SetToken("abc")

	res := c.Post(context.Background(), "/api/x", map[string]int{"n": 1})

	require.True(t, res.Success)
	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Len(t, got.Get(RequestIDHeader), 36)
	assert.Equal(t, float64(1), body["n"])
	assert.Equal(t, "yes", res.Field("ok"))
}

func TestRequest_NoBodyNoContentType(t *testing.T) {
	var got []http.Header
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Clone())
		w.WriteHeader(http.StatusNoContent)
	})

	c.Get(context.Background(), "/api/x", nil)
	c.Delete(context.Background(), "/api/x/1")

	require.Len(t, got, 2)
	for _, h := range got {
		assert.Empty(t, h.Get("Content-Type"))
		assert.Equal(t, "application/json", h.Get("Accept"))
	}
}

func TestRequest_NoTokenNoAuthorization(t *testing.T) {
	var auth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})

	res := c.Get(context.Background(), "/api/x", nil)
	assert.True(t, res.Success)
	assert.Empty(t, auth)
}

func TestRequest_TokenOverrideAndQuery(t *testing.T) {
	var auth, query string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		query = r.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	c.SetToken("stored")

	c.Request(context.Background(), http.MethodGet, "/api/x", nil, &RequestOptions{
		Token: "override",
		Query: url.Values{"page": {"2"}},
	})
	assert.Equal(t, "Bearer override", auth)
	assert.Equal(t, "page=2", query)
}

func TestRequest_UnwrapsEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]int{"total": 7},
		})
	})

	res := c.Get(context.Background(), "/api/x", nil)
	require.True(t, res.Success)

	var out struct{ Total int }
	require.NoError(t, res.Decode(&out))
	assert.Equal(t, 7, out.Total)
}

func TestRequest_EnvelopeFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "nope"})
	})

	res := c.Get(context.Background(), "/api/x", nil)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "nope", res.Error)
}

func TestRequest_TextBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "hello")
	})

	res := c.Get(context.Background(), "/x", nil)
	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.Text)
	assert.Empty(t, res.Data)
	assert.Error(t, res.Decode(&struct{}{}))
}

func TestRequest_ErrorMessageFromBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Amount is required"})
	})

	res := c.Post(context.Background(), "/api/transactions", map[string]string{})
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "Amount is required", res.Error)
}

func TestRequest_NetworkFailureHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Config{BaseURL: base})
	res := c.Get(context.Background(), "/api/x", nil)

	assert.False(t, res.Success)
	assert.Zero(t, res.Status)
	assert.False(t, res.Cancelled)
	assert.Contains(t, res.Error, "network error")
}

// ============================================================================
// Signals
// ============================================================================

func TestRequest_UnauthorizedClearsTokenAndSignalsOnce(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token has expired"})
	})
	c.SetToken("expired")

	res := c.Get(context.Background(), "/api/transactions", nil)

	assert.False(t, res.Success)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.False(t, c.HasToken())
	assert.Equal(t, []events.Kind{events.Unauthorized}, rec.kinds())
}

func TestRequest_SuppressAuthSignal(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	})
	c.SetToken("keep")

	res := c.Request(context.Background(), http.MethodPost, "/api/auth/login", nil, &RequestOptions{SuppressAuthSignal: true})

	assert.Equal(t, "Invalid credentials", res.Error)
	assert.True(t, c.HasToken())
	assert.Empty(t, rec.kinds())
}

func TestRequest_ForbiddenKeepsToken(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Access denied"})
	})
	c.SetToken("tok")

	c.Get(context.Background(), "/api/admin", nil)
	assert.True(t, c.HasToken())
	assert.Equal(t, []events.Kind{events.Forbidden}, rec.kinds())
}

func TestRequest_ServerErrorSignals(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "down"})
	})

	res := c.Get(context.Background(), "/api/x", nil)
	assert.Equal(t, "down", res.Error)
	assert.Equal(t, []events.Kind{events.ServerError}, rec.kinds())
}

// ============================================================================
// Cancellation
// ============================================================================

func TestRequest_CancelToken(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	tok := NewCancelToken(context.Background())
	done := make(chan Result, 1)
	go func() { done <- c.Get(tok.Context(), "/slow", nil) }()

	<-started
	tok.Cancel()
	tok.Cancel()

	select {
	case res := <-done:
		assert.True(t, res.Cancelled)
		assert.False(t, res.Success)
		assert.Zero(t, res.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("request did not abort")
	}
	assert.True(t, tok.Cancelled())
	assert.Empty(t, rec.kinds())
}

func TestRequest_AlreadyCancelled(t *testing.T) {
	hit := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { hit = true })

	tok := NewCancelToken(context.Background())
	tok.Cancel()
	res := c.Get(tok.Context(), "/x", nil)

	assert.True(t, res.Cancelled)
	assert.False(t, hit)
}

// ============================================================================
// Batch
// ============================================================================

func TestBatch_PreservesOrderAndIsolatesFailures(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "missing"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
	})

	calls := []Call{
		{Method: http.MethodGet, Path: "/a"},
		{Method: http.MethodGet, Path: "/fail"},
		{Method: http.MethodGet, Path: "/c"},
	}
	out := c.Batch(context.Background(), calls)

	require.Len(t, out.Results, 3)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, "/a", out.Results[0].Field("path"))
	assert.Equal(t, "missing", out.Results[1].Error)
	assert.Equal(t, "/c", out.Results[2].Field("path"))
}

func TestBatch_RespectsConcurrencyLimit(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxConcurrency: 2})
	calls := make([]Call, 6)
	for i := range calls {
		calls[i] = Call{Method: http.MethodGet, Path: fmt.Sprintf("/%d", i)}
	}
	out := c.Batch(context.Background(), calls)

	assert.Equal(t, 6, out.Succeeded)
	assert.LessOrEqual(t, peak, 2)
}

// ============================================================================
// Multipart, metrics, tracing
// ============================================================================

func TestRequest_MultipartBody(t *testing.T) {
	var ct, field, file string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		field = r.FormValue("account")
		f, _, err := r.FormFile("statement")
		require.NoError(t, err)
		b, _ := io.ReadAll(f)
		file = string(b)
		writeJSON(w, http.StatusCreated, map[string]any{})
	})

	body, err := NewMultipartBody(
		map[string]string{"account": "checking"},
		FilePart{Field: "statement", Filename: "s.csv", Content: strings.NewReader("a,b\n1,2\n")},
	)
	require.NoError(t, err)
	assert.Positive(t, body.Len())

	res := c.Post(context.Background(), "/api/import", body)
	require.True(t, res.Success)
	assert.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="))
	assert.Equal(t, "checking", field)
	assert.Equal(t, "a,b\n1,2\n", file)
}

func TestRequest_RecordsMetrics(t *testing.T) {
	m := observability.NewMetrics(nil)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{})
	}, WithMetrics(m))

	c.Get(context.Background(), "/x", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthSignalsTotal.WithLabelValues("unauthorized")))
}

func TestRequest_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}, WithTracer(tp.Tracer("test")))

	c.Get(context.Background(), "/api/budgets", nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "api GET /api/budgets", spans[0].Name())
}

func TestRequest_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, RequestsPerSecond: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.True(t, c.Get(ctx, "/a", nil).Success)
	res := c.Get(ctx, "/b", nil)
	assert.False(t, res.Success, "second request waits past the deadline")
}
