// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"strings"
	"time"
)

// IDToken holds the header and claims of an OIDC id_token. It is only ever
// created by ParseIDToken. Audience is the token's single audience; an aud
// array is accepted when it holds exactly one client id.
type IDToken struct {
	// Raw is the compact serialization the token was parsed from.
	Raw string

	KeyID     string
	TokenType string
	Algorithm string

	Issuer         string
	Subject        string
	Audience       string
	ExpirationTime int64
	IssuedTime     int64

	// Optional claims are empty (or nil for EmailVerified) when absent.
	Email         string
	EmailVerified *bool
	GivenName     string
	FamilyName    string

	// signingInput is "header.payload" exactly as received.
	signingInput string
}

// Expiry returns the exp claim as a time.
func (t *IDToken) Expiry() time.Time {
	return time.Unix(t.ExpirationTime, 0)
}

// IssuedAt returns the iat claim as a time.
func (t *IDToken) IssuedAt() time.Time {
	return time.Unix(t.IssuedTime, 0)
}

// SigningInput returns "header.payload" as it appeared in Raw.
func (t *IDToken) SigningInput() string {
	return t.signingInput
}

// ParseIDToken parses a compact JWT into an IDToken. It returns nil when raw
// does not have three non-empty segments, when the header or payload is not
// a base64url encoded JSON object, or when a required header parameter or
// claim is missing or of the wrong type. The signature is not verified here;
// see Validator.
func ParseIDToken(raw string) *IDToken {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil
	}
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	header := DecodeSegment(parts[0])
	if header == nil {
		return nil
	}
	payload := DecodeSegment(parts[1])
	if payload == nil {
		return nil
	}

	t := &IDToken{
		Raw:          raw,
		signingInput: parts[0] + "." + parts[1],
	}
	var ok bool
	if t.KeyID, ok = stringClaim(header, "kid"); !ok {
		return nil
	}
	if t.TokenType, ok = stringClaim(header, "typ"); !ok {
		return nil
	}
	if t.Algorithm, ok = stringClaim(header, "alg"); !ok {
		return nil
	}
	if t.Subject, ok = stringClaim(payload, "sub"); !ok {
		return nil
	}
	if t.Audience, ok = audienceClaim(payload); !ok {
		return nil
	}
	if t.Issuer, ok = stringClaim(payload, "iss"); !ok {
		return nil
	}
	if t.ExpirationTime, ok = numericClaim(payload, "exp"); !ok {
		return nil
	}
	if t.IssuedTime, ok = numericClaim(payload, "iat"); !ok {
		return nil
	}

	t.Email, _ = stringClaim(payload, "email")
	t.GivenName, _ = stringClaim(payload, "given_name")
	t.FamilyName, _ = stringClaim(payload, "family_name")
	if v, ok := payload["email_verified"].(bool); ok {
		t.EmailVerified = &v
	}
	return t
}

func stringClaim(m map[string]interface{}, name string) (string, bool) {
	s, ok := m[name].(string)
	return s, ok
}

func audienceClaim(m map[string]interface{}) (string, bool) {
	switch aud := m["aud"].(type) {
	case string:
		return aud, true
	case []interface{}:
		if len(aud) != 1 {
			return "", false
		}
		s, ok := aud[0].(string)
		return s, ok
	}
	return "", false
}

func numericClaim(m map[string]interface{}, name string) (int64, bool) {
	f, ok := m[name].(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
