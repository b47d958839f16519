// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

// Wednesday 18 March 2026.
var testNow = time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC)

const testPassword = "Blue#Kite7q"

type fixture struct {
	t     *testing.T
	srv   *Server
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SeedDemo = false
	cfg.BcryptCost = bcrypt.MinCost
	for _, m := range mutate {
		m(&cfg)
	}
	clock := clockwork.NewFakeClockAt(testNow)
	srv, err := New(Options{Config: cfg, Clock: clock})
	require.NoError(t, err)
	return &fixture{t: t, srv: srv, clock: clock}
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type authBody struct {
	Message      string   `json:"message"`
	Error        string   `json:"error"`
	Details      []string `json:"details"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	SessionID    string   `json:"session_id"`
	LockedUntil  string   `json:"locked_until"`
	User         userView `json:"user"`
}

func registration(email, username string) map[string]string {
	return map[string]string{
		"email":      email,
		"username":   username,
		"password":   testPassword,
		"first_name": "Ana",
		"last_name":  "Diaz",
	}
}

// signUp registers a user and returns the token pair.
func (f *fixture) signUp(email, username string) (string, string) {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/auth/register", "", registration(email, username))
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[authBody](f.t, w)
	return body.AccessToken, body.RefreshToken
}

func (f *fixture) login(email, password string) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
}

// =============================================================================
// Configuration
// =============================================================================

func TestNew_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.JWTSecret = "short" }},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"refresh shorter than access", func(c *Config) { c.RefreshTTL = time.Minute }},
		{"zero login rate", func(c *Config) { c.LoginRatePerMinute = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(Options{Config: cfg})
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// =============================================================================
// Registration
// =============================================================================

func TestRegister_IssuesSession(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/auth/register", "", registration("Ana@Example.com", "ana"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[authBody](t, w)

	assert.Equal(t, "User registered successfully", body.Message)
	assert.Equal(t, "ana@example.com", body.User.Email)
	assert.Equal(t, "Ana Diaz", body.User.FullName)
	assert.Equal(t, "INR", body.User.Currency)
	assert.NotEmpty(t, body.RefreshToken)
	assert.NotEmpty(t, body.SessionID)

	me := f.do(http.MethodGet, "/api/auth/me", body.AccessToken, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, body.User.ID, decode[authBody](t, me).User.ID)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	f.signUp("taken@example.com", "taken")

	with := func(key, value string) map[string]string {
		r := registration("new@example.com", "newbie")
		r[key] = value
		return r
	}
	tests := []struct {
		name   string
		body   map[string]string
		status int
		err    string
	}{
		{"missing email", with("email", ""), http.StatusBadRequest, "email is required"},
		{"missing last name", with("last_name", " "), http.StatusBadRequest, "last_name is required"},
		{"bad email", with("email", "not-an-email"), http.StatusBadRequest, "Invalid email format"},
		{"weak password", with("password", "password"), http.StatusBadRequest, "Password validation failed"},
		{"unknown currency", with("currency", "XXX"), http.StatusBadRequest, "Unsupported currency"},
		{"duplicate email", with("email", "TAKEN@example.com"), http.StatusConflict, "Email already registered"},
		{"duplicate username", with("username", "Taken"), http.StatusConflict, "Username already taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.err, decode[authBody](t, w).Error)
		})
	}

	w := f.do(http.MethodPost, "/api/auth/register", "", with("password", "password"))
	assert.Contains(t, decode[authBody](t, w).Details, "Password is too common")
}

func TestRegister_MalformedBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid JSON body"}`, w.Body.String())
}

// =============================================================================
// Login, lockout and rate limiting
// =============================================================================

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.signUp("ana@example.com", "ana")

	w := f.login("ANA@example.com", testPassword)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[authBody](t, w)
	assert.Equal(t, "Login successful", body.Message)
	require.NotNil(t, body.User.LastLogin)
	assert.Equal(t, testNow.Format(time.RFC3339), *body.User.LastLogin)

	v := f.do(http.MethodGet, "/api/auth/validate", body.AccessToken, nil)
	require.Equal(t, http.StatusOK, v.Code)
	assert.Contains(t, v.Body.String(), `"valid":true`)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.signUp("ana@example.com", "ana")

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		err      string
	}{
		{"missing password", "ana@example.com", "", http.StatusBadRequest, "Email and password are required"},
		{"missing email", "", testPassword, http.StatusBadRequest, "Email and password are required"},
		{"unknown email", "who@example.com", testPassword, http.StatusUnauthorized, "Invalid email or password"},
		{"wrong password", "ana@example.com", "Wrong#Pass9", http.StatusUnauthorized, "Invalid email or password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.login(tt.email, tt.password)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.err, decode[authBody](t, w).Error)
		})
	}
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	f.signUp("ana@example.com", "ana")

	for i := 0; i < maxFailedLogins; i++ {
		require.Equal(t, http.StatusUnauthorized, f.login("ana@example.com", "Wrong#Pass9").Code)
	}

	w := f.login("ana@example.com", testPassword)
	require.Equal(t, http.StatusLocked, w.Code)
	body := decode[authBody](t, w)
	assert.Equal(t, "Account is temporarily locked", body.Error)
	assert.Equal(t, testNow.Add(lockDuration).Format(time.RFC3339), body.LockedUntil)

	f.clock.Advance(lockDuration)
	assert.Equal(t, http.StatusOK, f.login("ana@example.com", testPassword).Code)
}

func TestLogin_SuccessResetsFailures(t *testing.T) {
	f := newFixture(t)
	f.signUp("ana@example.com", "ana")

	for i := 0; i < maxFailedLogins-1; i++ {
		f.login("ana@example.com", "Wrong#Pass9")
	}
	require.Equal(t, http.StatusOK, f.login("ana@example.com", testPassword).Code)
	require.Equal(t, http.StatusUnauthorized, f.login("ana@example.com", "Wrong#Pass9").Code)
	assert.Equal(t, http.StatusOK, f.login("ana@example.com", testPassword).Code, "counter restarted")
}

func TestLogin_RateLimitedPerClient(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.LoginRatePerMinute = 2 })
	f.signUp("ana@example.com", "ana")

	assert.Equal(t, http.StatusOK, f.login("ana@example.com", testPassword).Code)
	assert.Equal(t, http.StatusOK, f.login("ana@example.com", testPassword).Code)

	w := f.login("ana@example.com", testPassword)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many login attempts")

	f.clock.Advance(30 * time.Second)
	assert.Equal(t, http.StatusOK, f.login("ana@example.com", testPassword).Code)
}

// =============================================================================
// Tokens, refresh and logout
// =============================================================================

func TestProtected_RequiresToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/api/transactions", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"token is invalid or expired"}`, w.Body.String())
}

func TestRefresh_ExtendsExpiredAccess(t *testing.T) {
	f := newFixture(t)
	access, refresh := f.signUp("ana@example.com", "ana")

	f.clock.Advance(time.Hour + time.Second)
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/me", access, nil).Code)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/auth/refresh", access, nil).Code,
		"access tokens cannot refresh")

	w := f.do(http.MethodPost, "/api/auth/refresh", refresh, nil)
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decode[authBody](t, w).AccessToken
	require.NotEmpty(t, fresh)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/auth/me", fresh, nil).Code)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/me", refresh, nil).Code,
		"refresh tokens cannot call the API")
}

func TestLogout_EndsSession(t *testing.T) {
	f := newFixture(t)
	access, refresh := f.signUp("ana@example.com", "ana")
	other := decode[authBody](t, f.login("ana@example.com", testPassword)).AccessToken

	w := f.do(http.MethodPost, "/api/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Logout successful"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/me", access, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/auth/refresh", refresh, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/auth/me", other, nil).Code,
		"other sessions survive")
}

// =============================================================================
// Health and metrics
// =============================================================================

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(90 * time.Second)

	w := f.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, Version, health["version"])
	assert.EqualValues(t, 90, health["uptime_seconds"])

	assert.Contains(t, f.do(http.MethodGet, "/ready", "", nil).Body.String(), `"status":"ready"`)
	assert.Contains(t, f.do(http.MethodGet, "/live", "", nil).Body.String(), `"status":"alive"`)
}

func TestMetrics_ExposesHTTPAndAuthCounters(t *testing.T) {
	f := newFixture(t)
	f.signUp("ana@example.com", "ana")
	f.login("ana@example.com", "Wrong#Pass9")
	f.do(http.MethodGet, "/nope", "", nil)

	w := f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	text := w.Body.String()
	assert.Contains(t, text, `fintrack_backend_http_requests_total{method="POST",route="/api/auth/register",status="201"} 1`)
	assert.Contains(t, text, `route="unmatched"`)
	assert.Contains(t, text, "fintrack_backend_auth_events_total")
	assert.Contains(t, text, `outcome="failure"`)
}

// =============================================================================
// Serving
// =============================================================================

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNew_SeedsDemoAccount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	exporter := logging.NewBufferedExporter()
	srv, err := New(Options{
		Config: cfg,
		Clock:  clockwork.NewFakeClockAt(testNow),
		Logger: logging.New(logging.Config{Quiet: true, Exporter: exporter}),
	})
	require.NoError(t, err)
	f := &fixture{t: t, srv: srv}

	w := f.login(DemoEmail, DemoPassword)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "USD", decode[authBody](t, w).User.Currency)
	assert.True(t, exporter.Contains(logging.LevelInfo, "demo account ready"))
}
