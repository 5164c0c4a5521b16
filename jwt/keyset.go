// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2"
)

var (
	// ErrInvalidJWKS is returned when a key set has no usable key for a token.
	ErrInvalidJWKS = errors.New("invalid JWKS")

	// ErrInvalidParameter is returned for missing or malformed arguments.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// RS256 is the only signing algorithm accepted for id_tokens.
const RS256 = "RS256"

// JWKS is a JSON Web Key Set as published by the issuer at /.well-known/jwks.
type JWKS struct {
	Keys []jose.JSONWebKey `json:"keys"`
}

// Key returns the key with the given key id.
func (s *JWKS) Key(kid string) (jose.JSONWebKey, bool) {
	if s == nil {
		return jose.JSONWebKey{}, false
	}
	for _, k := range s.Keys {
		if k.KeyID == kid {
			return k, true
		}
	}
	return jose.JSONWebKey{}, false
}

// Validator checks an IDToken's signature against a JWKS and its iss, aud
// and exp claims against the configured issuer, client id and clock.
type Validator struct {
	issuer   string
	clientID string
	now      func() time.Time
}

// NewValidator creates a Validator for tokens issued by issuer to clientID.
//
// Supported options: WithNow
func NewValidator(issuer, clientID string, opt ...Option) (*Validator, error) {
	const op = "jwt.NewValidator"
	switch {
	case issuer == "":
		return nil, fmt.Errorf("%s: missing issuer: %w", op, ErrInvalidParameter)
	case clientID == "":
		return nil, fmt.Errorf("%s: missing client id: %w", op, ErrInvalidParameter)
	}
	opts := getConfigOpts(opt...)
	return &Validator{
		issuer:   issuer,
		clientID: clientID,
		now:      opts.withNow,
	}, nil
}

// Validate returns true when the token's signature verifies with the key in
// keys matching its key id and the token was issued by the expected issuer
// to the expected client and has not yet expired.
//
// An error (ErrInvalidJWKS) is only returned when keys has no usable RSA key
// for the token's key id. A bad signature or claim returns false.
func (v *Validator) Validate(_ context.Context, t *IDToken, keys *JWKS) (bool, error) {
	const op = "Validator.Validate"
	if t == nil {
		return false, fmt.Errorf("%s: missing id token: %w", op, ErrInvalidParameter)
	}
	jwk, ok := keys.Key(t.KeyID)
	if !ok {
		return false, fmt.Errorf("%s: no key for kid %q: %w", op, t.KeyID, ErrInvalidJWKS)
	}
	pub, ok := jwk.Key.(*rsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("%s: key %q is not an RSA public key: %w", op, t.KeyID, ErrInvalidJWKS)
	}

	if t.Algorithm != RS256 {
		return false, nil
	}
	sig, err := jose.ParseSigned(t.Raw)
	if err != nil {
		return false, nil
	}
	if _, err := sig.Verify(pub); err != nil {
		return false, nil
	}

	switch {
	case t.Issuer != v.issuer:
		return false, nil
	case t.Audience != v.clientID:
		return false, nil
	case t.ExpirationTime <= v.now().Unix():
		return false, nil
	}
	return true, nil
}
