// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/sha256"
	"fmt"

	"github.com/myopenpass/openpass-go/jwt"
)

// ChallengeMethod represents PKCE code challenge methods as defined by RFC
// 7636.
type ChallengeMethod string

// S256 is the only challenge method used by OpenPass.
const S256 ChallengeMethod = "S256"

// verifierLen is the minimum code_verifier length allowed by RFC 7636.
const verifierLen = 43

// CodeVerifier holds a PKCE code_verifier and its S256 code_challenge.
type CodeVerifier struct {
	verifier  string
	challenge string
}

// NewCodeVerifier creates a random 43 character code verifier.
func NewCodeVerifier() (*CodeVerifier, error) {
	const op = "oidc.NewCodeVerifier"
	v, err := NewID(verifierLen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CodeVerifier{
		verifier:  v,
		challenge: CreateCodeChallenge(v),
	}, nil
}

// Verifier returns the code_verifier, sent with the token request.
func (cv *CodeVerifier) Verifier() string { return cv.verifier }

// Challenge returns the code_challenge, sent with the authorize request.
func (cv *CodeVerifier) Challenge() string { return cv.challenge }

// Method returns the code_challenge_method.
func (cv *CodeVerifier) Method() ChallengeMethod { return S256 }

// CreateCodeChallenge returns base64url(sha256(verifier)).
func CreateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return jwt.Base64URLEncode(sum[:])
}
