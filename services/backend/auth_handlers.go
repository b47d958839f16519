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
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/backend/middleware"
)

const (
	maxFailedLogins = 5
	lockDuration    = 15 * time.Minute
	defaultCurrency = "INR"
)

// userView is the JSON form of a User.
type userView struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	FullName  string  `json:"full_name"`
	Currency  string  `json:"currency"`
	CreatedAt string  `json:"created_at"`
	LastLogin *string `json:"last_login"`
	AvatarURL string  `json:"avatar_url,omitempty"`
}

func viewUser(u User) userView {
	v := userView{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		Currency:  u.Currency,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !u.LastLogin.IsZero() {
		ts := u.LastLogin.UTC().Format(time.RFC3339)
		v.LastLogin = &ts
	}
	return v
}

// =============================================================================
// Token validation
// =============================================================================

// tokenValidator accepts tokens of typ whose jti is not revoked, whose
// session is still active and whose user still exists.
func (s *Server) tokenValidator(typ TokenType) middleware.TokenValidator {
	return middleware.ValidatorFunc(func(_ context.Context, token string) (*middleware.Principal, error) {
		claims, err := s.tokens.Parse(token, typ)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", middleware.ErrUnauthorized, err)
		}
		if s.store.Revoked(claims.ID, s.clock.Now()) {
			return nil, fmt.Errorf("%w: token revoked", middleware.ErrUnauthorized)
		}
		if !s.store.SessionActive(claims.SessionID, claims.Subject) {
			return nil, fmt.Errorf("%w: session ended", middleware.ErrUnauthorized)
		}
		if _, err := s.store.UserByID(claims.Subject); err != nil {
			return nil, fmt.Errorf("%w: unknown user", middleware.ErrUnauthorized)
		}
		return &middleware.Principal{
			UserID:    claims.Subject,
			SessionID: claims.SessionID,
			TokenID:   claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		}, nil
	})
}

// =============================================================================
// Handlers
// =============================================================================

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Currency  string `json:"currency"`
}

func (r *registerRequest) check() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))

	required := []struct{ name, value string }{
		{"email", r.Email},
		{"username", r.Username},
		{"password", r.Password},
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
	}
	for _, f := range required {
		if f.value == "" {
			return badRequest(f.name + " is required")
		}
	}
	if !validEmail(r.Email) {
		return badRequest("Invalid email format")
	}
	if problems := passwordProblems(r.Password); len(problems) > 0 {
		return badRequest("Password validation failed", problems...)
	}
	if r.Currency == "" {
		r.Currency = defaultCurrency
	}
	if !currencies[r.Currency] {
		return badRequest("Unsupported currency")
	}
	return nil
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("Invalid JSON body"))
		return
	}
	if err := req.check(); err != nil {
		s.telemetry.RecordAuth(c.Request.Context(), "register", "invalid")
		s.writeError(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		s.writeError(c, fmt.Errorf("hashing password: %w", err))
		return
	}
	user, err := s.store.CreateUser(User{
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Currency:     req.Currency,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		s.telemetry.RecordAuth(c.Request.Context(), "register", "conflict")
		s.writeError(c, err)
		return
	}

	body, err := s.openSession(c, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	body["message"] = "User registered successfully"
	s.telemetry.RecordAuth(c.Request.Context(), "register", "success")
	s.logger.Info("user registered", "user_id", user.ID)
	c.JSON(http.StatusCreated, body)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	ctx := c.Request.Context()
	if !s.logins.Allow(c.ClientIP()) {
		s.telemetry.RecordAuth(ctx, "login", "rate_limited")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts, please try again later"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.writeError(c, badRequest("Email and password are required"))
		return
	}

	invalid := &apiError{status: http.StatusUnauthorized, message: "Invalid email or password"}
	user, err := s.store.UserByEmail(req.Email)
	if err != nil {
		s.telemetry.RecordAuth(ctx, "login", "failure")
		s.writeError(c, invalid)
		return
	}

	now := s.clock.Now()
	if user.Locked(now) {
		s.telemetry.RecordAuth(ctx, "login", "locked")
		s.writeError(c, lockedError(user.LockedUntil))
		return
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		updated, _ := s.store.UpdateUser(user.ID, func(u *User) {
			u.FailedLogins++
			if u.FailedLogins >= maxFailedLogins {
				u.LockedUntil = now.Add(lockDuration)
				u.FailedLogins = 0
			}
		})
		s.telemetry.RecordAuth(ctx, "login", "failure")
		if updated.Locked(now) {
			s.logger.Warn("account locked", "user_id", user.ID, "until", updated.LockedUntil)
		}
		s.writeError(c, invalid)
		return
	}

	user, err = s.store.UpdateUser(user.ID, func(u *User) {
		u.FailedLogins = 0
		u.LockedUntil = time.Time{}
		u.LastLogin = now
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	body, err := s.openSession(c, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	body["message"] = "Login successful"
	s.telemetry.RecordAuth(ctx, "login", "success")
	s.logger.Info("user logged in", "user_id", user.ID)
	c.JSON(http.StatusOK, body)
}

func lockedError(until time.Time) error {
	return &apiError{
		status:  http.StatusLocked,
		message: "Account is temporarily locked",
		extra:   gin.H{"locked_until": until.UTC().Format(time.RFC3339)},
	}
}

// openSession records a session and issues its token pair.
func (s *Server) openSession(c *gin.Context, user User) (gin.H, error) {
	sess := s.store.CreateSession(user.ID, c.ClientIP(), c.Request.UserAgent(), s.clock.Now())
	access, _, err := s.tokens.Issue(user.ID, sess.ID, AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.tokens.Issue(user.ID, sess.ID, RefreshToken)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"user":          s.viewProfile(user),
		"access_token":  access,
		"refresh_token": refresh,
		"session_id":    sess.ID,
	}, nil
}

func (s *Server) handleRefresh(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	access, _, err := s.tokens.Issue(p.UserID, p.SessionID, AccessToken)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.telemetry.RecordAuth(c.Request.Context(), "refresh", "success")
	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

func (s *Server) handleLogout(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	s.store.Revoke(p.TokenID, p.ExpiresAt)
	s.store.EndSession(p.SessionID)
	s.telemetry.RecordAuth(c.Request.Context(), "logout", "success")
	s.logger.Info("user logged out", "user_id", p.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (s *Server) handleValidate(c *gin.Context) {
	user, err := s.store.UserByID(middleware.GetPrincipal(c).UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": s.viewProfile(user)})
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.store.UserByID(middleware.GetPrincipal(c).UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": s.viewProfile(user)})
}
