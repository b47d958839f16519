// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the authenticated session: tokens, user profile,
// persistence and token refresh.
//
// # State machine
//
//	Anonymous --Login/Register/Restore--> Authenticating --ok--> Authenticated
//	Authenticating --failure--> Anonymous
//	Authenticated --timer--> Refreshing --ok--> Authenticated
//	Refreshing --failure--> Anonymous (forced logout)
//	any --Logout / unauthorized event--> Anonymous
//
// Subscribers are told about user changes only: the new user on login or
// profile update, nil on logout.
//
// # Thread Safety
//
// Manager is safe for concurrent use. No lock is held while calling the
// API, the stores or subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/apiclient"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/events"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/observability"
)

// =============================================================================
// Types
// =============================================================================

// State is the session lifecycle state.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// User is the signed-in user's profile.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Currency  string `json:"currency,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName is the name shown in the navigation bar.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// Credentials are the login form values.
type Credentials struct {
	Email    string
	Password string

	// Remember selects the durable scope instead of the ephemeral one.
	Remember bool
}

// Registration are the sign-up form values.
type Registration struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Currency  string `json:"currency,omitempty"`
	Remember  bool   `json:"-"`
}

var (
	// ErrInvalidCredentials is returned when the backend rejects a login
	// with 401.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAlreadyAuthenticated is returned by Login and Register while a
	// session exists.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrBusy is returned while a login or refresh is in flight.
	ErrBusy = errors.New("session operation in progress")

	// ErrNoRefreshToken is returned when a refresh is needed but no
	// refresh token is held.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// RequestError is a failed auth request with the server's message.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// API is the subset of the API client the manager uses.
type API interface {
	Request(ctx context.Context, method, path string, body any, opts *apiclient.RequestOptions) apiclient.Result
	SetToken(token string)
	ClearToken()
}

// Config tunes timing. Zero fields take the defaults below.
type Config struct {
	// RefreshLead is how long before expiry the refresh fires.
	RefreshLead time.Duration

	// MinRefreshDelay is the floor of the refresh delay.
	MinRefreshDelay time.Duration

	// MaxAge discards persisted records older than this.
	MaxAge time.Duration

	// ValidateInterval is the minimum gap between server validations.
	ValidateInterval time.Duration
}

const (
	DefaultRefreshLead      = 5 * time.Minute
	DefaultMinRefreshDelay  = time.Minute
	DefaultMaxAge           = 7 * 24 * time.Hour
	DefaultValidateInterval = 5 * time.Minute
)

// maxClockSkew tolerates records saved slightly in the future.
const maxClockSkew = time.Minute

// Options collects the manager's collaborators.
type Options struct {
	// Durable is the "remember me" scope. Nil uses a MemoryStore.
	Durable Store

	// Ephemeral is the per-run scope. Nil uses a MemoryStore.
	Ephemeral Store

	// Bus delivers events.Unauthorized, which forces a logout.
	Bus *events.Bus

	Clock   clockwork.Clock
	Logger  *logging.Logger
	Metrics *observability.Metrics
	Config  Config
}

type subscriber struct {
	id int
	fn func(*User)
}

// =============================================================================
// Manager
// =============================================================================

// Manager is the single owner of session state.
type Manager struct {
	api       API
	durable   Store
	ephemeral Store
	clock     clockwork.Clock
	logger    *logging.Logger
	metrics   *observability.Metrics
	config    Config
	unsub     func()

	mu            sync.Mutex
	state         State
	access        string
	refresh       string
	user          *User
	remember      bool
	timer         clockwork.Timer
	refreshAt     time.Time
	lastValidated time.Time
	// gen changes whenever a session starts or ends; stale timers and
	// in-flight refreshes compare against it.
	gen     uint64
	subs    []subscriber
	nextSub int

	persistMu sync.Mutex
}

// New creates a Manager in the Anonymous state.
func New(api API, opts Options) *Manager {
	cfg := opts.Config
	if cfg.RefreshLead <= 0 {
		cfg.RefreshLead = DefaultRefreshLead
	}
	if cfg.MinRefreshDelay <= 0 {
		cfg.MinRefreshDelay = DefaultMinRefreshDelay
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.ValidateInterval <= 0 {
		cfg.ValidateInterval = DefaultValidateInterval
	}
	if opts.Durable == nil {
		opts.Durable = NewMemoryStore()
	}
	if opts.Ephemeral == nil {
		opts.Ephemeral = NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	m := &Manager{
		api:       api,
		durable:   opts.Durable,
		ephemeral: opts.Ephemeral,
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "session"),
		metrics:   opts.Metrics,
		config:    cfg,
		unsub:     func() {},
	}
	if opts.Bus != nil {
		m.unsub = opts.Bus.Subscribe(events.Unauthorized, func(events.Event) {
			m.forceLogout("unauthorized response")
		})
	}
	return m
}

// Close detaches from the event bus and stops the refresh timer. The
// session itself is left intact.
func (m *Manager) Close() {
	m.unsub()
	m.mu.Lock()
	m.stopTimerLocked()
	m.mu.Unlock()
}

// ===== Accessors =====

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyUser(m.user)
}

// IsAuthenticated reports whether a session is established.
func (m *Manager) IsAuthenticated() bool {
	s := m.State()
	return s == Authenticated || s == Refreshing
}

// RefreshScheduledAt returns when the refresh timer fires, or the zero
// time when none is armed.
func (m *Manager) RefreshScheduledAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshAt
}

// Subscribe registers fn for user changes and returns its unsubscribe
// function. fn runs on the goroutine that caused the change.
func (m *Manager) Subscribe(fn func(*User)) func() {
	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// ===== Login / Register =====

type authResponse struct {
	Message      string `json:"message"`
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
}

// Login authenticates with email and password.
//
// # Outputs
//
//   - *User: The signed-in user on success.
//   - error: ErrInvalidCredentials on 401, *RequestError on other
//     failures, ErrAlreadyAuthenticated or ErrBusy when not Anonymous.
func (m *Manager) Login(ctx context.Context, cr Credentials) (*User, error) {
	if err := m.beginAuth(); err != nil {
		return nil, err
	}

	body := map[string]string{"email": cr.Email, "password": cr.Password}
	res := m.api.Request(ctx, http.MethodPost, "/api/auth/login", body,
		&apiclient.RequestOptions{SuppressAuthSignal: true})
	if !res.Success {
		m.abortAuth()
		if res.Status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, requestError(res)
	}

	var resp authResponse
	if err := res.Decode(&resp); err != nil || resp.AccessToken == "" || resp.User == nil {
		m.abortAuth()
		return nil, &RequestError{Status: res.Status, Message: "malformed login response"}
	}

	user := m.establish(ctx, resp.AccessToken, resp.RefreshToken, resp.User, cr.Remember, true)
	m.logger.Info("logged in", "user_id", user.ID, "remember", cr.Remember)
	return user, nil
}

// Register creates an account. When the backend answers with tokens the
// session is established; otherwise the state returns to Anonymous and
// the created user is returned.
func (m *Manager) Register(ctx context.Context, reg Registration) (*User, error) {
	if err := m.beginAuth(); err != nil {
		return nil, err
	}

	res := m.api.Request(ctx, http.MethodPost, "/api/auth/register", reg,
		&apiclient.RequestOptions{SuppressAuthSignal: true})
	if !res.Success {
		m.abortAuth()
		return nil, requestError(res)
	}

	var resp authResponse
	if err := res.Decode(&resp); err != nil || resp.User == nil {
		m.abortAuth()
		return nil, &RequestError{Status: res.Status, Message: "malformed registration response"}
	}
	if resp.AccessToken == "" {
		m.abortAuth()
		return copyUser(resp.User), nil
	}

	user := m.establish(ctx, resp.AccessToken, resp.RefreshToken, resp.User, reg.Remember, true)
	m.logger.Info("registered", "user_id", user.ID)
	return user, nil
}

func (m *Manager) beginAuth() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case Anonymous:
		m.setStateLocked(Authenticating)
		return nil
	case Authenticating, Refreshing:
		return ErrBusy
	default:
		return ErrAlreadyAuthenticated
	}
}

func (m *Manager) abortAuth() {
	m.mu.Lock()
	if m.state == Authenticating {
		m.setStateLocked(Anonymous)
	}
	m.mu.Unlock()
}

// establish installs a new session, persists it, arms the refresh timer
// and notifies subscribers.
func (m *Manager) establish(ctx context.Context, access, refresh string, user *User, remember, persist bool) *User {
	now := m.clock.Now()

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.access = access
	m.refresh = refresh
	m.user = copyUser(user)
	m.remember = remember
	m.lastValidated = now
	m.setStateLocked(Authenticated)
	m.api.SetToken(access)
	m.armLocked(now)
	rec := m.recordLocked(now)
	m.mu.Unlock()

	if persist {
		m.persist(ctx, gen, rec, remember)
	}
	m.notify(user)
	return copyUser(user)
}

// ===== Restore =====

// Restore reloads a persisted session, trying the durable scope first.
// Records older than the maximum age, or unreadable, are deleted. Reports
// whether a session was established.
func (m *Manager) Restore(ctx context.Context) bool {
	m.mu.Lock()
	if m.state != Anonymous {
		m.mu.Unlock()
		return m.IsAuthenticated()
	}
	m.mu.Unlock()

	scopes := []struct {
		name     string
		store    Store
		remember bool
	}{
		{"durable", m.durable, true},
		{"ephemeral", m.ephemeral, false},
	}
	for _, sc := range scopes {
		rec, err := sc.store.Load(ctx)
		if errors.Is(err, ErrNoRecord) {
			continue
		}
		if err != nil {
			m.logger.Warn("discarding unreadable session", "scope", sc.name, "error", err)
			m.clearStore(ctx, sc.store, sc.name)
			continue
		}

		age := m.clock.Now().Sub(rec.SavedAt())
		if age > m.config.MaxAge || age < -maxClockSkew || rec.Token == "" || rec.User == nil {
			m.logger.Info("discarding stale session", "scope", sc.name, "age", age.String())
			m.clearStore(ctx, sc.store, sc.name)
			continue
		}

		user := m.establish(ctx, rec.Token, rec.RefreshToken, rec.User, sc.remember, false)
		m.logger.Info("session restored", "scope", sc.name, "user_id", user.ID)
		return true
	}
	return false
}

// ===== Logout =====

// Logout ends the session. The backend is told on a best-effort basis;
// local state is cleared whatever it answers.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	if m.state == Anonymous {
		m.mu.Unlock()
		return
	}
	access := m.access
	m.mu.Unlock()

	if access != "" {
		res := m.api.Request(ctx, http.MethodPost, "/api/auth/logout", nil,
			&apiclient.RequestOptions{Token: access, SuppressAuthSignal: true})
		if !res.Success {
			m.logger.Warn("logout request failed", "status", res.Status, "error", res.Error)
		}
	}

	if m.clearLocal(ctx) {
		m.logger.Info("logged out")
		m.notify(nil)
	}
}

func (m *Manager) forceLogout(reason string) {
	if m.clearLocal(context.Background()) {
		m.logger.Warn("session ended", "reason", reason)
		m.notify(nil)
	}
}

// clearLocal drops all session state. Reports whether there was a session.
func (m *Manager) clearLocal(ctx context.Context) bool {
	m.mu.Lock()
	if m.state == Anonymous {
		m.mu.Unlock()
		return false
	}
	m.gen++
	m.stopTimerLocked()
	m.access, m.refresh = "", ""
	m.user = nil
	m.lastValidated = time.Time{}
	m.setStateLocked(Anonymous)
	m.api.ClearToken()
	m.mu.Unlock()

	m.persistMu.Lock()
	m.clearStore(ctx, m.durable, "durable")
	m.clearStore(ctx, m.ephemeral, "ephemeral")
	m.persistMu.Unlock()
	return true
}

// ===== Refresh =====

// Refresh exchanges the refresh token for a new access token. A failure
// forces a logout.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Refreshing {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.state != Authenticated {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	if m.refresh == "" {
		m.mu.Unlock()
		m.metrics.RecordRefresh(false)
		m.forceLogout("no refresh token")
		return ErrNoRefreshToken
	}
	m.setStateLocked(Refreshing)
	m.stopTimerLocked()
	token, gen := m.refresh, m.gen
	m.mu.Unlock()

	res := m.api.Request(ctx, http.MethodPost, "/api/auth/refresh", nil,
		&apiclient.RequestOptions{Token: token, SuppressAuthSignal: true})

	var resp authResponse
	ok := res.Success && res.Decode(&resp) == nil && resp.AccessToken != ""

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !ok {
		m.mu.Unlock()
		m.metrics.RecordRefresh(false)
		m.forceLogout("token refresh failed")
		if !res.Success {
			return requestError(res)
		}
		return &RequestError{Status: res.Status, Message: "malformed refresh response"}
	}

	now := m.clock.Now()
	m.access = resp.AccessToken
	if resp.RefreshToken != "" {
		m.refresh = resp.RefreshToken
	}
	m.lastValidated = now
	m.setStateLocked(Authenticated)
	m.api.SetToken(m.access)
	m.armLocked(now)
	rec, remember := m.recordLocked(now), m.remember
	m.mu.Unlock()

	m.metrics.RecordRefresh(true)
	m.persist(ctx, gen, rec, remember)
	m.logger.Debug("token refreshed")
	return nil
}

func (m *Manager) onTimer(gen uint64) {
	m.mu.Lock()
	stale := gen != m.gen || m.state != Authenticated
	m.mu.Unlock()
	if stale {
		return
	}
	if err := m.Refresh(context.Background()); err != nil && !errors.Is(err, ErrBusy) {
		m.logger.Warn("scheduled refresh failed", "error", err)
	}
}

// armLocked schedules the refresh for the current access token.
func (m *Manager) armLocked(now time.Time) {
	m.stopTimerLocked()

	exp, err := tokenExpiry(m.access)
	if err != nil {
		m.logger.Warn("access token has no usable expiry; refresh not scheduled", "error", err)
		return
	}
	delay := RefreshDelay(exp, now, m.config.RefreshLead, m.config.MinRefreshDelay)
	gen := m.gen
	m.timer = m.clock.AfterFunc(delay, func() { m.onTimer(gen) })
	m.refreshAt = now.Add(delay)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.refreshAt = time.Time{}
}

// RefreshDelay is max(exp - now - lead, floor).
func RefreshDelay(exp, now time.Time, lead, floor time.Duration) time.Duration {
	d := exp.Sub(now) - lead
	if d < floor {
		return floor
	}
	return d
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client holds no key and the server re-checks every request.
func tokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// ===== Validate =====

// Validate reports whether the session can be used for a protected page.
//
// # Description
//
// An expired access token is refreshed synchronously. Otherwise the
// backend is asked at most once per ValidateInterval. Only a 401 ends the
// session; transport failures and other statuses keep it. A cancelled
// request reports false without touching the session.
func (m *Manager) Validate(ctx context.Context) bool {
	m.mu.Lock()
	state := m.state
	access := m.access
	last := m.lastValidated
	gen := m.gen
	m.mu.Unlock()

	switch state {
	case Refreshing:
		return true
	case Authenticated:
	default:
		return false
	}

	now := m.clock.Now()
	if exp, err := tokenExpiry(access); err == nil && !now.Before(exp) {
		return m.Refresh(ctx) == nil
	}
	if now.Sub(last) < m.config.ValidateInterval {
		return true
	}

	res := m.api.Request(ctx, http.MethodGet, "/api/auth/validate", nil, nil)
	switch {
	case res.Success:
		var body struct {
			User *User `json:"user"`
		}
		_ = res.Decode(&body)
		m.mu.Lock()
		if m.gen == gen {
			m.lastValidated = now
			if body.User != nil {
				m.user = copyUser(body.User)
			}
		}
		m.mu.Unlock()
		return m.IsAuthenticated()
	case res.Cancelled:
		return false
	case res.Status == http.StatusUnauthorized:
		m.forceLogout("validation rejected")
		return false
	case res.Status == 0:
		m.logger.Warn("session validation unreachable; keeping session", "error", res.Error)
		return true
	default:
		m.logger.Warn("session validation failed; keeping session", "status", res.Status, "error", res.Error)
		return true
	}
}

// ===== Profile =====

// UpdateProfile replaces the user and notifies subscribers.
func (m *Manager) UpdateProfile(ctx context.Context, u User) error {
	m.mu.Lock()
	if m.state != Authenticated && m.state != Refreshing {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.user = copyUser(&u)
	gen, remember := m.gen, m.remember
	rec := m.recordLocked(m.clock.Now())
	m.mu.Unlock()

	m.persist(ctx, gen, rec, remember)
	m.notify(&u)
	return nil
}

// =============================================================================
// Internals
// =============================================================================

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.metrics.RecordTransition(s.String())
}

func (m *Manager) recordLocked(now time.Time) Record {
	return Record{
		Token:        m.access,
		RefreshToken: m.refresh,
		User:         copyUser(m.user),
		Timestamp:    now.UnixMilli(),
	}
}

// persist writes rec to the chosen scope and clears the other, unless
// the session changed since rec was taken.
func (m *Manager) persist(ctx context.Context, gen uint64, rec Record, remember bool) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	current := m.gen == gen
	m.mu.Unlock()
	if !current {
		return
	}

	keep, drop, dropName := m.ephemeral, m.durable, "durable"
	if remember {
		keep, drop, dropName = m.durable, m.ephemeral, "ephemeral"
	}
	if err := keep.Save(ctx, rec); err != nil {
		m.logger.Warn("persisting session failed", "error", err)
	}
	m.clearStore(ctx, drop, dropName)
}

func (m *Manager) clearStore(ctx context.Context, s Store, name string) {
	if err := s.Clear(ctx); err != nil {
		m.logger.Warn("clearing session scope failed", "scope", name, "error", err)
	}
}

func (m *Manager) notify(u *User) {
	m.mu.Lock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, s := range subs {
		m.deliver(s.fn, copyUser(u))
	}
}

func (m *Manager) deliver(fn func(*User), u *User) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session subscriber panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn(u)
}

func requestError(res apiclient.Result) error {
	msg := res.Error
	if msg == "" {
		msg = "request failed"
	}
	return &RequestError{Status: res.Status, Message: msg}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
