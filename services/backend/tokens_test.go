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
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(clock clockwork.Clock) *TokenIssuer {
	return NewTokenIssuer("0123456789abcdef-secret", time.Hour, 30*24*time.Hour, clock)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC))
	issuer := newIssuer(clock)

	token, issued, err := issuer.Issue("u1", "s1", AccessToken)
	require.NoError(t, err)

	claims, err := issuer.Parse(token, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "s1", claims.SessionID)
	assert.Equal(t, issued.ID, claims.ID)
	assert.True(t, clock.Now().Add(time.Hour).Equal(claims.ExpiresAt.Time))
}

func TestTokenIssuer_RefreshLivesLonger(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC))
	issuer := newIssuer(clock)

	access, _, err := issuer.Issue("u1", "s1", AccessToken)
	require.NoError(t, err)
	refresh, _, err := issuer.Issue("u1", "s1", RefreshToken)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = issuer.Parse(access, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token expired")
	_, err = issuer.Parse(refresh, RefreshToken)
	assert.NoError(t, err)
}

func TestTokenIssuer_Rejections(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC))
	issuer := newIssuer(clock)
	refresh, _, err := issuer.Issue("u1", "s1", RefreshToken)
	require.NoError(t, err)

	other := NewTokenIssuer("another-secret-of-16+", time.Hour, time.Hour, clock)
	forged, _, err := other.Issue("u1", "s1", AccessToken)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Type: AccessToken}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong type", refresh},
		{"wrong key", forged},
		{"alg none", none},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Parse(tt.token, AccessToken)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
