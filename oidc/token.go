// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/myopenpass/openpass-go/jwt"
	"golang.org/x/oauth2"
)

const (
	// RedactedIDToken is the redacted string for an oidc id_token
	RedactedIDToken = "[REDACTED: id_token]"

	// RedactedAccessToken is the redacted string for an oauth access_token
	RedactedAccessToken = "[REDACTED: access_token]"

	// RedactedRefreshToken is the redacted string for an oauth refresh_token
	RedactedRefreshToken = "[REDACTED: refresh_token]"
)

const expirySkew = 10 * time.Second

// TokenPayload is the successful body of a token endpoint response.
type TokenPayload struct {
	IDToken               string `json:"id_token"`
	IDTokenExpiresIn      *int64 `json:"id_token_expires_in,omitempty"`
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	RefreshTokenExpiresIn *int64 `json:"refresh_token_expires_in,omitempty"`
}

// TokenSet is the set of tokens produced by a completed flow. TokenSets are
// values: flows never modify one after handing it out.
type TokenSet struct {
	IDTokenJWT string

	// IDToken is parsed from IDTokenJWT and is nil when IDTokenJWT is not a
	// well formed JWT. Manager never holds a TokenSet without one.
	IDToken *jwt.IDToken

	IDTokenExpiresIn *int64

	AccessToken string
	TokenType   string
	ExpiresIn   int64

	// RefreshToken is empty when the server did not issue one.
	RefreshToken          string
	RefreshTokenExpiresIn *int64

	// IssuedAt is the client's clock when the token response was received.
	IssuedAt time.Time
}

// NewTokenSet creates a TokenSet from a token endpoint response received at
// issuedAt.
func NewTokenSet(p *TokenPayload, issuedAt time.Time) *TokenSet {
	return &TokenSet{
		IDTokenJWT:            p.IDToken,
		IDToken:               jwt.ParseIDToken(p.IDToken),
		IDTokenExpiresIn:      p.IDTokenExpiresIn,
		AccessToken:           p.AccessToken,
		TokenType:             p.TokenType,
		ExpiresIn:             p.ExpiresIn,
		RefreshToken:          p.RefreshToken,
		RefreshTokenExpiresIn: p.RefreshTokenExpiresIn,
		IssuedAt:              issuedAt.Round(0),
	}
}

// ExpiresAt is when the access token expires.
func (t *TokenSet) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IDTokenExpiresAt is when the id_token expires, if the server said.
func (t *TokenSet) IDTokenExpiresAt() (time.Time, bool) {
	if t.IDTokenExpiresIn == nil {
		return time.Time{}, false
	}
	return t.IssuedAt.Add(time.Duration(*t.IDTokenExpiresIn) * time.Second), true
}

// RefreshTokenExpiresAt is when the refresh token expires, if the server
// said.
func (t *TokenSet) RefreshTokenExpiresAt() (time.Time, bool) {
	if t.RefreshTokenExpiresIn == nil {
		return time.Time{}, false
	}
	return t.IssuedAt.Add(time.Duration(*t.RefreshTokenExpiresIn) * time.Second), true
}

// Expired will return true if the access token is expired. Supported
// options: WithExpirySkew, WithNow
func (t *TokenSet) Expired(opt ...Option) bool {
	opts := getTokenOpts(opt...)
	return t.ExpiresAt().Before(opts.withNowFunc().Add(opts.withExpirySkew))
}

// Valid will ensure that the access token is not empty or expired. Supported
// options: WithExpirySkew, WithNow
func (t *TokenSet) Valid(opt ...Option) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return !t.Expired(opt...)
}

// Token returns the tokens as an oauth2.Token, with the id_token available
// via Extra("id_token").
func (t *TokenSet) Token() *oauth2.Token {
	tk := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt(),
	}
	return tk.WithExtra(map[string]interface{}{
		"id_token": t.IDTokenJWT,
	})
}

// Equal reports whether two token sets hold the same values.
func (t *TokenSet) Equal(o *TokenSet) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.IDTokenJWT == o.IDTokenJWT &&
		int64PtrEqual(t.IDTokenExpiresIn, o.IDTokenExpiresIn) &&
		t.AccessToken == o.AccessToken &&
		t.TokenType == o.TokenType &&
		t.ExpiresIn == o.ExpiresIn &&
		t.RefreshToken == o.RefreshToken &&
		int64PtrEqual(t.RefreshTokenExpiresIn, o.RefreshTokenExpiresIn) &&
		t.IssuedAt.Equal(o.IssuedAt)
}

// String will redact the tokens
func (t *TokenSet) String() string {
	if t == nil {
		return "<nil>"
	}
	refresh := ""
	if t.RefreshToken != "" {
		refresh = RedactedRefreshToken
	}
	return fmt.Sprintf("TokenSet{IDToken: %s, AccessToken: %s, TokenType: %s, ExpiresIn: %d, RefreshToken: %s, IssuedAt: %s}",
		RedactedIDToken, RedactedAccessToken, t.TokenType, t.ExpiresIn, refresh, t.IssuedAt.Format(time.RFC3339))
}

// GoString will redact the tokens
func (t *TokenSet) GoString() string {
	return t.String()
}

// storedTokenSet is the persisted form of a TokenSet.
type storedTokenSet struct {
	TokenPayload
	IssuedAt time.Time `json:"issued_at"`
}

func marshalTokenSet(t *TokenSet) ([]byte, error) {
	return json.Marshal(&storedTokenSet{
		TokenPayload: TokenPayload{
			IDToken:               t.IDTokenJWT,
			IDTokenExpiresIn:      t.IDTokenExpiresIn,
			AccessToken:           t.AccessToken,
			TokenType:             t.TokenType,
			ExpiresIn:             t.ExpiresIn,
			RefreshToken:          t.RefreshToken,
			RefreshTokenExpiresIn: t.RefreshTokenExpiresIn,
		},
		IssuedAt: t.IssuedAt,
	})
}

func unmarshalTokenSet(b []byte) (*TokenSet, error) {
	const op = "oidc.unmarshalTokenSet"
	var s storedTokenSet
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrDecoding)
	}
	return NewTokenSet(&s.TokenPayload, s.IssuedAt), nil
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type tokenOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
}

func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: expirySkew,
		withNowFunc:    time.Now,
	}
}

func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
