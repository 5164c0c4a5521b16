// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"testing"
	"time"

	"github.com/myopenpass/openpass-go/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	josejwt "gopkg.in/square/go-jose.v2/jwt"
)

func testIDToken(t *testing.T) string {
	t.Helper()
	_, priv := jwt.TestGenerateKeys(t)
	now := time.Now()
	return jwt.TestSignJWT(t, priv, "kid-1", josejwt.Claims{
		Issuer:   "https://auth.myopenpass.com",
		Subject:  "alice",
		IssuedAt: josejwt.NewNumericDate(now),
		Expiry:   josejwt.NewNumericDate(now.Add(time.Hour)),
	}, map[string]interface{}{"aud": "client-id"})
}

func testPayload(t *testing.T) *TokenPayload {
	t.Helper()
	idExp, refreshExp := int64(600), int64(7200)
	return &TokenPayload{
		IDToken:               testIDToken(t),
		IDTokenExpiresIn:      &idExp,
		AccessToken:           "access",
		TokenType:             "Bearer",
		ExpiresIn:             3600,
		RefreshToken:          "refresh",
		RefreshTokenExpiresIn: &refreshExp,
	}
}

func TestNewTokenSet(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	issued := time.Unix(1700000000, 0)
	p := testPayload(t)

	ts := NewTokenSet(p, issued)
	require.NotNil(ts.IDToken)
	assert.Equal("alice", ts.IDToken.Subject)
	assert.Equal("client-id", ts.IDToken.Audience)
	assert.Equal(p.IDToken, ts.IDTokenJWT)
	assert.Equal(issued.Add(time.Hour), ts.ExpiresAt())

	idExp, ok := ts.IDTokenExpiresAt()
	assert.True(ok)
	assert.Equal(issued.Add(10*time.Minute), idExp)
	refreshExp, ok := ts.RefreshTokenExpiresAt()
	assert.True(ok)
	assert.Equal(issued.Add(2*time.Hour), refreshExp)

	p.IDToken = "not-a-jwt"
	p.IDTokenExpiresIn, p.RefreshTokenExpiresIn = nil, nil
	ts = NewTokenSet(p, issued)
	assert.Nil(ts.IDToken)
	_, ok = ts.IDTokenExpiresAt()
	assert.False(ok)
	_, ok = ts.RefreshTokenExpiresAt()
	assert.False(ok)
}

func TestTokenSet_Expired(t *testing.T) {
	t.Parallel()
	issued := time.Unix(1700000000, 0)
	ts := NewTokenSet(&TokenPayload{AccessToken: "access", ExpiresIn: 60}, issued)
	at := func(d time.Duration) Option {
		return WithNow(func() time.Time { return issued.Add(d) })
	}
	tests := []struct {
		name      string
		opt       []Option
		wantValid bool
	}{
		{name: "fresh", opt: []Option{at(0)}, wantValid: true},
		{name: "inside-skew", opt: []Option{at(55 * time.Second)}, wantValid: false},
		{name: "no-skew", opt: []Option{at(55 * time.Second), WithExpirySkew(0)}, wantValid: true},
		{name: "expired", opt: []Option{at(2 * time.Minute)}, wantValid: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(!tt.wantValid, ts.Expired(tt.opt...))
			assert.Equal(tt.wantValid, ts.Valid(tt.opt...))
		})
	}
	t.Run("empty-access-token", func(t *testing.T) {
		empty := NewTokenSet(&TokenPayload{ExpiresIn: 60}, issued)
		assert.False(t, empty.Valid(at(0)))
		var nilSet *TokenSet
		assert.False(t, nilSet.Valid())
	})
}

func TestTokenSet_Token(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	issued := time.Unix(1700000000, 0)
	p := testPayload(t)
	ts := NewTokenSet(p, issued)

	tk := ts.Token()
	assert.Equal("access", tk.AccessToken)
	assert.Equal("Bearer", tk.TokenType)
	assert.Equal("refresh", tk.RefreshToken)
	assert.Equal(issued.Add(time.Hour), tk.Expiry)
	assert.Equal(p.IDToken, tk.Extra("id_token"))
}

func TestTokenSet_Equal(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	issued := time.Unix(1700000000, 0)
	p := testPayload(t)
	a := NewTokenSet(p, issued)
	b := NewTokenSet(p, issued.UTC())
	assert.True(a.Equal(b))

	c := NewTokenSet(p, issued.Add(time.Second))
	assert.False(a.Equal(c))

	var nilSet *TokenSet
	assert.True(nilSet.Equal(nil))
	assert.False(a.Equal(nil))
}

func TestTokenSet_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	p := testPayload(t)
	ts := NewTokenSet(p, time.Now())
	for _, s := range []string{ts.String(), ts.GoString(), fmt.Sprintf("%v", ts), fmt.Sprintf("%#v", ts)} {
		assert.NotContains(s, p.IDToken)
		assert.NotContains(s, "access,")
		assert.Contains(s, RedactedIDToken)
		assert.Contains(s, RedactedAccessToken)
		assert.Contains(s, RedactedRefreshToken)
	}
}

func TestTokenSet_Persistence(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ts := NewTokenSet(testPayload(t), time.Unix(1700000000, 0))

	b, err := marshalTokenSet(ts)
	require.NoError(err)
	assert.Contains(string(b), `"issued_at"`)

	got, err := unmarshalTokenSet(b)
	require.NoError(err)
	assert.True(ts.Equal(got))
	assert.Equal(ts.IDToken, got.IDToken)

	_, err = unmarshalTokenSet([]byte("{"))
	assert.ErrorIs(err, ErrDecoding)
}
