// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/apiclient"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/events"
)

// ============================================================================
// Fakes
// ============================================================================

type call struct {
	Method string
	Path   string
	Token  string
}

// fakeAPI answers requests from a route table keyed by "METHOD path".
type fakeAPI struct {
	mu     sync.Mutex
	routes map[string]func(call) apiclient.Result
	calls  []call
	token  string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{routes: make(map[string]func(call) apiclient.Result)}
}

func (f *fakeAPI) on(method, path string, fn func(call) apiclient.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
}

func (f *fakeAPI) Request(_ context.Context, method, path string, _ any, opts *apiclient.RequestOptions) apiclient.Result {
	f.mu.Lock()
	c := call{Method: method, Path: path, Token: f.token}
	if opts != nil && opts.Token != "" {
		c.Token = opts.Token
	}
	f.calls = append(f.calls, c)
	fn := f.routes[method+" "+path]
	f.mu.Unlock()

	if fn == nil {
		return apiclient.Result{Status: http.StatusNotFound, Error: "not found"}
	}
	return fn(c)
}

func (f *fakeAPI) SetToken(t string) {
	f.mu.Lock()
	f.token = t
	f.mu.Unlock()
}

func (f *fakeAPI) ClearToken() { f.SetToken("") }

func (f *fakeAPI) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func ok(v any) apiclient.Result {
	raw, _ := json.Marshal(v)
	return apiclient.Result{Success: true, Status: http.StatusOK, Data: raw}
}

func fail(status int, msg string) apiclient.Result {
	return apiclient.Result{Status: status, Error: msg}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

var testUser = &User{ID: "u1", Email: "ana@example.com", Username: "ana", FirstName: "Ana", LastName: "Diaz"}

type fixture struct {
	api       *fakeAPI
	clock     *clockwork.FakeClock
	durable   *MemoryStore
	ephemeral *MemoryStore
	bus       *events.Bus
	mgr       *Manager

	mu      sync.Mutex
	updates []*User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api:       newFakeAPI(),
		clock:     clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		durable:   NewMemoryStore(),
		ephemeral: NewMemoryStore(),
		bus:       events.NewBus(nil),
	}
	f.mgr = New(f.api, Options{
		Durable:   f.durable,
		Ephemeral: f.ephemeral,
		Bus:       f.bus,
		Clock:     f.clock,
	})
	f.mgr.Subscribe(func(u *User) {
		f.mu.Lock()
		f.updates = append(f.updates, u)
		f.mu.Unlock()
	})
	t.Cleanup(f.mgr.Close)
	return f
}

func (f *fixture) notified() []*User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*User(nil), f.updates...)
}

func (f *fixture) acceptLogin(t *testing.T) string {
	t.Helper()
	access := signedToken(t, f.clock.Now().Add(time.Hour))
	f.api.on(http.MethodPost, "/api/auth/login", func(call) apiclient.Result {
		return ok(map[string]any{
			"message":       "Login successful",
			"user":          testUser,
			"access_token":  access,
			"refresh_token": "refresh-1",
		})
	})
	return access
}

// ============================================================================
// Login
// ============================================================================

func TestLogin_EstablishesSession(t *testing.T) {
	f := newFixture(t)
	access := f.acceptLogin(t)

	user, err := f.mgr.Login(context.Background(), Credentials{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, Authenticated, f.mgr.State())
	assert.True(t, f.mgr.IsAuthenticated())
	assert.Equal(t, access, f.api.currentToken())

	want := f.clock.Now().Add(55 * time.Minute)
	assert.WithinDuration(t, want, f.mgr.RefreshScheduledAt(), time.Second)

	updates := f.notified()
	require.Len(t, updates, 1)
	assert.Equal(t, "Ana Diaz", updates[0].DisplayName())

	assert.True(t, f.ephemeral.Has(), "session without remember lands in the ephemeral scope")
	assert.False(t, f.durable.Has())
}

func TestLogin_RememberUsesDurableScope(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)

	_, err := f.mgr.Login(context.Background(), Credentials{Email: "a", Password: "b", Remember: true})
	require.NoError(t, err)

	assert.True(t, f.durable.Has())
	assert.False(t, f.ephemeral.Has())

	rec, err := f.durable.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", rec.RefreshToken)
	assert.Equal(t, f.clock.Now().UnixMilli(), rec.Timestamp)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.api.on(http.MethodPost, "/api/auth/login", func(call) apiclient.Result {
		return fail(http.StatusUnauthorized, "Invalid email or password")
	})

	_, err := f.mgr.Login(context.Background(), Credentials{Email: "a", Password: "b"})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, Anonymous, f.mgr.State())
	assert.Empty(t, f.notified())
	assert.True(t, f.mgr.RefreshScheduledAt().IsZero())
}

func TestLogin_ServerMessage(t *testing.T) {
	f := newFixture(t)
	f.api.on(http.MethodPost, "/api/auth/login", func(call) apiclient.Result {
		return fail(http.StatusLocked, "Account is temporarily locked")
	})

	_, err := f.mgr.Login(context.Background(), Credentials{Email: "a", Password: "b"})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusLocked, reqErr.Status)
	assert.Equal(t, "Account is temporarily locked", reqErr.Message)
	assert.Equal(t, Anonymous, f.mgr.State())
}

func TestLogin_WhileAuthenticated(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	_, err = f.mgr.Login(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)
}

func TestRegister_WithoutTokensStaysAnonymous(t *testing.T) {
	f := newFixture(t)
	f.api.on(http.MethodPost, "/api/auth/register", func(call) apiclient.Result {
		return ok(map[string]any{"message": "created", "user": testUser})
	})

	user, err := f.mgr.Register(context.Background(), Registration{Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, Anonymous, f.mgr.State())
	assert.Empty(t, f.notified())
}

func TestRegister_WithTokensLogsIn(t *testing.T) {
	f := newFixture(t)
	access := signedToken(t, f.clock.Now().Add(time.Hour))
	f.api.on(http.MethodPost, "/api/auth/register", func(call) apiclient.Result {
		return ok(map[string]any{"user": testUser, "access_token": access, "refresh_token": "r"})
	})

	_, err := f.mgr.Register(context.Background(), Registration{Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, f.mgr.State())
	assert.Len(t, f.notified(), 1)
}

// ============================================================================
// Restore
// ============================================================================

func TestRestore_DiscardsOldRecord(t *testing.T) {
	f := newFixture(t)
	old := f.clock.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, f.durable.Save(context.Background(), Record{
		Token: signedToken(t, old.Add(time.Hour)), User: testUser, Timestamp: old.UnixMilli(),
	}))

	assert.False(t, f.mgr.Restore(context.Background()))
	assert.Equal(t, Anonymous, f.mgr.State())
	assert.False(t, f.durable.Has(), "stale record is deleted")
	assert.Empty(t, f.notified())
}

func TestRestore_DiscardsFutureRecord(t *testing.T) {
	f := newFixture(t)
	ahead := f.clock.Now().Add(time.Hour)
	require.NoError(t, f.durable.Save(context.Background(), Record{
		Token: signedToken(t, ahead.Add(time.Hour)), User: testUser, Timestamp: ahead.UnixMilli(),
	}))

	assert.False(t, f.mgr.Restore(context.Background()))
	assert.False(t, f.durable.Has())
}

func TestRestore_FreshRecord(t *testing.T) {
	f := newFixture(t)
	token := signedToken(t, f.clock.Now().Add(30*time.Minute))
	require.NoError(t, f.ephemeral.Save(context.Background(), Record{
		Token: token, RefreshToken: "r", User: testUser,
		Timestamp: f.clock.Now().Add(-time.Hour).UnixMilli(),
	}))

	require.True(t, f.mgr.Restore(context.Background()))
	assert.Equal(t, Authenticated, f.mgr.State())
	assert.Equal(t, token, f.api.currentToken())
	assert.Len(t, f.notified(), 1)
	assert.WithinDuration(t, f.clock.Now().Add(25*time.Minute), f.mgr.RefreshScheduledAt(), time.Second)
}

func TestRestore_PrefersDurable(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	durableUser := &User{ID: "durable"}
	require.NoError(t, f.durable.Save(context.Background(), Record{
		Token: signedToken(t, now.Add(time.Hour)), User: durableUser, Timestamp: now.UnixMilli(),
	}))
	require.NoError(t, f.ephemeral.Save(context.Background(), Record{
		Token: signedToken(t, now.Add(time.Hour)), User: testUser, Timestamp: now.UnixMilli(),
	}))

	require.True(t, f.mgr.Restore(context.Background()))
	assert.Equal(t, "durable", f.mgr.User().ID)
}

// ============================================================================
// Refresh
// ============================================================================

func TestRefresh_TimerRenewsToken(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	renewed := signedToken(t, f.clock.Now().Add(2*time.Hour))
	f.api.on(http.MethodPost, "/api/auth/refresh", func(c call) apiclient.Result {
		if c.Token != "refresh-1" {
			return fail(http.StatusUnauthorized, "bad refresh token")
		}
		return ok(map[string]string{"access_token": renewed})
	})

	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)
	require.NoError(t, f.clock.BlockUntilContext(t.Context(), 1))

	f.clock.Advance(55 * time.Minute)

	require.Eventually(t, func() bool { return f.api.currentToken() == renewed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Authenticated, f.mgr.State())
	assert.Equal(t, 1, f.api.count(http.MethodPost, "/api/auth/refresh"))
	assert.Len(t, f.notified(), 1, "refresh does not notify subscribers")
}

func TestRefresh_FailureForcesLogout(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	f.api.on(http.MethodPost, "/api/auth/refresh", func(call) apiclient.Result {
		return fail(http.StatusUnauthorized, "expired")
	})
	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	err = f.mgr.Refresh(context.Background())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, Anonymous, f.mgr.State())
	assert.Empty(t, f.api.currentToken())
	updates := f.notified()
	require.Len(t, updates, 2)
	assert.Nil(t, updates[1])
	assert.False(t, f.ephemeral.Has())
}

func TestRefreshDelay(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		exp  time.Time
		want time.Duration
	}{
		{"one hour token", now.Add(time.Hour), 55 * time.Minute},
		{"near expiry floors at a minute", now.Add(3 * time.Minute), time.Minute},
		{"already expired floors at a minute", now.Add(-time.Hour), time.Minute},
		{"exactly at floor", now.Add(6 * time.Minute), time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RefreshDelay(tt.exp, now, 5*time.Minute, time.Minute))
		})
	}
}

func TestTokenExpiry_Malformed(t *testing.T) {
	_, err := tokenExpiry("not-a-jwt")
	assert.Error(t, err)
}

// ============================================================================
// Logout
// ============================================================================

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	f.api.on(http.MethodPost, "/api/auth/logout", func(call) apiclient.Result {
		return fail(0, "network error")
	})
	_, err := f.mgr.Login(context.Background(), Credentials{Remember: true})
	require.NoError(t, err)

	f.mgr.Logout(context.Background())

	assert.Equal(t, Anonymous, f.mgr.State())
	assert.Nil(t, f.mgr.User())
	assert.Empty(t, f.api.currentToken())
	assert.False(t, f.durable.Has())
	assert.True(t, f.mgr.RefreshScheduledAt().IsZero())
	assert.Equal(t, 1, f.api.count(http.MethodPost, "/api/auth/logout"))

	updates := f.notified()
	require.Len(t, updates, 2)
	assert.Nil(t, updates[1])

	f.mgr.Logout(context.Background())
	assert.Len(t, f.notified(), 2, "second logout is a no-op")
}

func TestUnauthorizedEventForcesLogout(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	f.bus.Publish(events.Event{Kind: events.Unauthorized, Status: http.StatusUnauthorized})

	assert.Equal(t, Anonymous, f.mgr.State())
	assert.Nil(t, f.notified()[1])
	assert.Zero(t, f.api.count(http.MethodPost, "/api/auth/logout"))
}

// ============================================================================
// Validate
// ============================================================================

func TestValidate_Anonymous(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.mgr.Validate(context.Background()))
}

func TestValidate_ChecksServerOncePerInterval(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	f.api.on(http.MethodGet, "/api/auth/validate", func(call) apiclient.Result {
		return ok(map[string]any{"valid": true, "user": testUser})
	})
	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	assert.True(t, f.mgr.Validate(context.Background()))
	assert.Zero(t, f.api.count(http.MethodGet, "/api/auth/validate"))

	f.clock.Advance(6 * time.Minute)
	assert.True(t, f.mgr.Validate(context.Background()))
	assert.True(t, f.mgr.Validate(context.Background()))
	assert.Equal(t, 1, f.api.count(http.MethodGet, "/api/auth/validate"))
}

func TestValidate_RejectedEndsSession(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	f.api.on(http.MethodGet, "/api/auth/validate", func(call) apiclient.Result {
		return fail(http.StatusUnauthorized, "Session expired")
	})
	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	assert.False(t, f.mgr.Validate(context.Background()))
	assert.Equal(t, Anonymous, f.mgr.State())
}

func TestValidate_ServerFailureKeepsSession(t *testing.T) {
	for _, status := range []int{http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusForbidden, http.StatusNotFound} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			f := newFixture(t)
			f.acceptLogin(t)
			f.api.on(http.MethodGet, "/api/auth/validate", func(call) apiclient.Result {
				return fail(status, "unavailable")
			})
			_, err := f.mgr.Login(context.Background(), Credentials{})
			require.NoError(t, err)

			f.clock.Advance(6 * time.Minute)
			assert.True(t, f.mgr.Validate(context.Background()))
			assert.Equal(t, Authenticated, f.mgr.State())
			assert.Len(t, f.notified(), 1, "no logout notification")
		})
	}
}

func TestValidate_CancelledKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	f.api.on(http.MethodGet, "/api/auth/validate", func(call) apiclient.Result {
		return apiclient.Result{Cancelled: true, Error: "context canceled"}
	})
	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	assert.False(t, f.mgr.Validate(context.Background()))
	assert.Equal(t, Authenticated, f.mgr.State())
}

func TestValidate_RefreshesExpiredToken(t *testing.T) {
	f := newFixture(t)
	expired := signedToken(t, f.clock.Now().Add(-time.Minute))
	renewed := signedToken(t, f.clock.Now().Add(time.Hour))
	require.NoError(t, f.ephemeral.Save(context.Background(), Record{
		Token: expired, RefreshToken: "r", User: testUser, Timestamp: f.clock.Now().UnixMilli(),
	}))
	f.api.on(http.MethodPost, "/api/auth/refresh", func(call) apiclient.Result {
		return ok(map[string]string{"access_token": renewed})
	})
	require.True(t, f.mgr.Restore(context.Background()))

	assert.True(t, f.mgr.Validate(context.Background()))
	assert.Equal(t, renewed, f.api.currentToken())
}

// ============================================================================
// Subscribers and profile
// ============================================================================

func TestSubscribe_PanicDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)

	f.mgr.Subscribe(func(*User) { panic("boom") })
	var late *User
	unsubscribe := f.mgr.Subscribe(func(u *User) { late = u })

	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	require.NotNil(t, late)
	assert.Equal(t, "u1", late.ID)
	assert.Len(t, f.notified(), 1)

	unsubscribe()
	unsubscribe()
	late = nil
	require.NoError(t, f.mgr.UpdateProfile(context.Background(), User{ID: "u1", FirstName: "Anna"}))
	assert.Nil(t, late)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.mgr.UpdateProfile(context.Background(), User{}), ErrNotAuthenticated)

	f.acceptLogin(t)
	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	require.NoError(t, f.mgr.UpdateProfile(context.Background(), User{ID: "u1", FirstName: "Anna"}))
	assert.Equal(t, "Anna", f.mgr.User().FirstName)

	rec, err := f.ephemeral.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Anna", rec.User.FirstName)

	updates := f.notified()
	require.Len(t, updates, 2)
	assert.Equal(t, "Anna", updates[1].FirstName)
}

func TestUserIsCopy(t *testing.T) {
	f := newFixture(t)
	f.acceptLogin(t)
	_, err := f.mgr.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	u := f.mgr.User()
	u.FirstName = "mutated"
	assert.Equal(t, "Ana", f.mgr.User().FirstName)
}
