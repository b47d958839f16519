// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

type mockValidator struct {
	principal *Principal
	err       error
	tokens    []string
}

func (m *mockValidator) Validate(_ context.Context, token string) (*Principal, error) {
	m.tokens = append(m.tokens, token)
	if m.err != nil {
		return nil, m.err
	}
	return m.principal, nil
}

func newRouter(v TokenValidator) *gin.Engine {
	r := gin.New()
	r.GET("/me", RequireAuth(v), func(c *gin.Context) {
		p := GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID})
	})
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// =============================================================================
// extractBearerToken
// =============================================================================

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"mixed case scheme", "BeArEr abc123", "abc123"},
		{"trims token", "Bearer  abc123 ", "abc123"},
		{"missing", "", ""},
		{"no scheme", "abc123", ""},
		{"basic auth", "Basic abc123", ""},
		{"empty bearer", "Bearer ", ""},
		{"only bearer", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(c))
		})
	}
}

// =============================================================================
// RequireAuth
// =============================================================================

func TestRequireAuth_StoresPrincipal(t *testing.T) {
	v := &mockValidator{principal: &Principal{UserID: "u1", SessionID: "s1"}}

	w := get(newRouter(v), "Bearer tok")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1"}`, w.Body.String())
	assert.Equal(t, []string{"tok"}, v.tokens)
}

func TestRequireAuth_MissingTokenSkipsValidator(t *testing.T) {
	v := &mockValidator{principal: &Principal{UserID: "u1"}}

	w := get(newRouter(v), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authorization token required"}`, w.Body.String())
	assert.Empty(t, v.tokens)
}

func TestRequireAuth_Rejections(t *testing.T) {
	tests := []struct {
		name string
		v    *mockValidator
		want string
	}{
		{"unauthorized", &mockValidator{err: ErrUnauthorized}, "token is invalid or expired"},
		{"wrapped unauthorized", &mockValidator{err: errors.Join(ErrUnauthorized, errors.New("revoked"))}, "token is invalid or expired"},
		{"validator failure", &mockValidator{err: errors.New("store down")}, "authentication failed"},
		{"nil principal", &mockValidator{}, "authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newRouter(tt.v), "Bearer tok")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, w.Body.String())
		})
	}
}

func TestGetPrincipal_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetPrincipal(c))

	c.Set(principalKey, "not a principal")
	assert.Nil(t, GetPrincipal(c))
}

func TestValidatorFunc(t *testing.T) {
	v := ValidatorFunc(func(_ context.Context, token string) (*Principal, error) {
		return &Principal{UserID: token}, nil
	})
	p, err := v.Validate(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, "u9", p.UserID)
}
