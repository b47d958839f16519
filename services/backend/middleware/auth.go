// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the FinTrack backend.
//
// # Authentication Flow
//
//	Request
//	   │
//	   ▼
//	RequireAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► validator.Validate(ctx, token)
//	   │
//	   └─► Store Principal in context
//	           │
//	           ▼
//	       Handler (retrieves via GetPrincipal)
//
// A missing token is rejected before the validator is called.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrUnauthorized is returned by validators for tokens that must be
// rejected. Any other error is treated as a validator failure.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the identity behind a verified token.
type Principal struct {
	UserID    string
	SessionID string
	TokenID   string
	ExpiresAt time.Time
}

// TokenValidator verifies a bearer token.
//
// # Thread Safety
//
// Implementations must be safe for concurrent calls.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Principal, error)
}

// ValidatorFunc adapts a function to TokenValidator.
type ValidatorFunc func(ctx context.Context, token string) (*Principal, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, token string) (*Principal, error) {
	return f(ctx, token)
}

// =============================================================================
// Context Helpers
// =============================================================================

const principalKey = "fintrack_principal"

// SetPrincipal stores the authenticated identity in the Gin context.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal retrieves the identity stored by RequireAuth.
//
// # Outputs
//
//   - *Principal: The identity, or nil if the request was not
//     authenticated or the stored value has the wrong type.
func GetPrincipal(c *gin.Context) *Principal {
	if v, exists := c.Get(principalKey); exists {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

// =============================================================================
// Auth Middleware
// =============================================================================

// RequireAuth creates a Gin middleware that rejects requests without a
// valid bearer token.
//
// # Description
//
// Responds 401 with a JSON {"error": ...} body and aborts the chain when
// the token is missing, rejected (ErrUnauthorized) or the validator fails.
// On success the Principal is stored for downstream handlers.
//
// # Inputs
//
//   - validator: Checks tokens. Must not be nil.
//
// # Examples
//
//	api := router.Group("/api")
//	api.Use(middleware.RequireAuth(accessTokens))
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authorization token required",
			})
			return
		}

		p, err := validator.Validate(c.Request.Context(), token)
		if err != nil || p == nil {
			msg := "authentication failed"
			if errors.Is(err, ErrUnauthorized) {
				msg = "token is invalid or expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		SetPrincipal(c, p)
		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken returns the token from "Authorization: Bearer <token>",
// or "" when the header is missing or uses another scheme. The scheme is
// matched case-insensitively per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
