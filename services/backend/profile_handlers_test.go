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
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type profileBody struct {
	Message   string   `json:"message"`
	Error     string   `json:"error"`
	AvatarURL string   `json:"avatar_url"`
	User      userView `json:"user"`
}

func (f *fixture) upload(token, field, filename string, data []byte) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(f.t, err)
		_, err = part.Write(data)
		require.NoError(f.t, err)
	}
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/users/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

// =============================================================================
// Profile
// =============================================================================

func TestProfile_Get(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signUp("ana@example.com", "ana")

	w := f.do(http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode[profileBody](t, w).User
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "Ana Diaz", user.FullName)
	assert.Empty(t, user.AvatarURL)
}

func TestProfile_UpdatePartial(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signUp("ana@example.com", "ana")

	w := f.do(http.MethodPut, "/api/users/profile", token, map[string]string{
		"first_name": " Anabel ",
		"currency":   "eur",
		"email":      "Anabel@Example.com",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[profileBody](t, w)
	assert.Equal(t, "Profile updated successfully", body.Message)
	assert.Equal(t, "Anabel Diaz", body.User.FullName)
	assert.Equal(t, "EUR", body.User.Currency)
	assert.Equal(t, "anabel@example.com", body.User.Email)
	assert.Equal(t, "ana", body.User.Username, "omitted fields keep their value")

	assert.Equal(t, http.StatusOK, f.login("anabel@example.com", testPassword).Code)
	assert.Equal(t, http.StatusUnauthorized, f.login("ana@example.com", testPassword).Code)
}

func TestProfile_UpdateValidation(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signUp("ana@example.com", "ana")
	f.signUp("bo@example.com", "bo")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		err    string
	}{
		{"bad email", map[string]string{"email": "nope"}, http.StatusBadRequest, "Invalid email format"},
		{"bad currency", map[string]string{"currency": "XYZ"}, http.StatusBadRequest, "Unsupported currency"},
		{"blank name", map[string]string{"first_name": "  "}, http.StatusBadRequest, "first_name cannot be empty"},
		{"email taken", map[string]string{"email": "BO@example.com"}, http.StatusConflict, "Email already registered"},
		{"username taken", map[string]string{"username": "Bo"}, http.StatusConflict, "Username already taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPut, "/api/users/profile", token, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.err, decode[profileBody](t, w).Error)
		})
	}

	w := f.do(http.MethodPut, "/api/users/profile", token, map[string]string{"email": "ANA@example.com"})
	assert.Equal(t, http.StatusOK, w.Code, "keeping your own email is not a conflict")
}

// =============================================================================
// Avatar
// =============================================================================

func TestAvatar_UploadAndServe(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signUp("ana@example.com", "ana")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/users/avatar", token, nil).Code)

	w := f.upload(token, "avatar", "me.png", pngHeader)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[profileBody](t, w)
	assert.Equal(t, "Avatar uploaded successfully", body.Message)
	assert.Equal(t, "/api/users/avatar", body.AvatarURL)

	w = f.do(http.MethodGet, "/api/users/avatar", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, w.Body.Bytes())

	profile := decode[profileBody](t, f.do(http.MethodGet, "/api/users/profile", token, nil))
	assert.Equal(t, "/api/users/avatar", profile.User.AvatarURL)
	me := decode[profileBody](t, f.do(http.MethodGet, "/api/auth/me", token, nil))
	assert.Equal(t, "/api/users/avatar", me.User.AvatarURL)
}

func TestAvatar_Rejections(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signUp("ana@example.com", "ana")

	tests := []struct {
		name  string
		field string
		data  []byte
		err   string
	}{
		{"no file", "", nil, "No avatar file provided"},
		{"wrong field", "picture", pngHeader, "No avatar file provided"},
		{"not an image", "avatar", []byte("just some text"), "Invalid file type"},
		{"too large", "avatar", append(append([]byte{}, pngHeader...), make([]byte, maxAvatarBytes)...), "Avatar must be at most 2MB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.upload(token, tt.field, "me.png", tt.data)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.err, decode[profileBody](t, w).Error)
		})
	}
}

// =============================================================================
// Transaction edits
// =============================================================================

func TestTransactions_UpdatePartial(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signUp("ana@example.com", "ana")
	tx := f.addTransaction(token, "5", "expense", "Coffee", "2026-03-01", "Food & Dining")

	w := f.do(http.MethodPut, "/api/transactions/"+tx.ID, token, map[string]string{
		"amount":      "6.499",
		"description": " Flat white ",
		"category":    "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[createdBody](t, w).Transaction
	assert.Equal(t, tx.ID, updated.ID)
	assert.True(t, dec("6.50").Equal(updated.Amount), updated.Amount.String())
	assert.Equal(t, "Flat white", updated.Description)
	assert.Empty(t, updated.CategoryID, "an empty category clears it")
	assert.Equal(t, "2026-03-01", updated.Date, "omitted fields keep their value")
	assert.Equal(t, tx.CreatedAt, updated.CreatedAt)

	got := decode[createdBody](t, f.do(http.MethodGet, "/api/transactions/"+tx.ID, token, nil)).Transaction
	assert.Equal(t, "Flat white", got.Description)
}

func TestTransactions_UpdateValidation(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signUp("ana@example.com", "ana")
	tx := f.addTransaction(token, "5", "expense", "Coffee", "2026-03-01", "")

	tests := []struct {
		name  string
		key   string
		value string
		err   string
	}{
		{"zero amount", "amount", "0", "Invalid amount"},
		{"bad type", "type", "transfer", "Invalid transaction type"},
		{"blank description", "description", " ", "description is required"},
		{"bad date", "date", "2026-13-01", "Invalid date format (YYYY-MM-DD)"},
		{"unknown category", "category", "Crypto", "Unknown category: Crypto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPut, "/api/transactions/"+tx.ID, token, map[string]string{tt.key: tt.value})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.err, decode[createdBody](t, w).Error)
		})
	}

	got := decode[createdBody](t, f.do(http.MethodGet, "/api/transactions/"+tx.ID, token, nil)).Transaction
	assert.True(t, dec("5").Equal(got.Amount), "rejected edits change nothing")

	other, _ := f.signUp("bo@example.com", "bo")
	w := f.do(http.MethodPut, "/api/transactions/"+tx.ID, other, map[string]string{"description": "Mine"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Transaction not found"}`, w.Body.String())
}
