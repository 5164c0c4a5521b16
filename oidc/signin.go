// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// SignInFlow signs a user in with the authorization code grant and PKCE,
// using an AuthenticationSession to present the authorize page.
type SignInFlow struct {
	flow
	redirectURI    string
	redirectScheme string
	session        AuthenticationSession
}

// NewSignInFlow creates a SignInFlow. Completed tokens are passed to commit.
//
// Supported options: WithLogger, WithClock, WithValidator
func NewSignInFlow(c *Config, client *Client, session AuthenticationSession, commit CommitFunc, opt ...Option) (*SignInFlow, error) {
	const op = "oidc.NewSignInFlow"
	if session == nil {
		return nil, fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	}
	f, err := newFlow("sign-in-flow", c, client, commit, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SignInFlow{
		flow:           f,
		redirectURI:    c.RedirectURI(),
		redirectScheme: c.RedirectScheme(),
		session:        session,
	}, nil
}

// BeginSignIn runs the flow to completion. Each call uses a new state and
// code verifier, so concurrent calls are independent. On error nothing is
// committed.
func (f *SignInFlow) BeginSignIn(ctx context.Context) (*TokenSet, error) {
	const op = "SignInFlow.BeginSignIn"
	state, err := NewState()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cv, err := NewCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	authURL, err := f.client.AuthURL(state, cv, f.redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f.logger.Debug("presenting authorize url")
	callback, err := f.session.Authenticate(ctx, authURL, f.redirectScheme)
	if err != nil {
		if errors.Is(err, ErrUserCancelled) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s: %w", op, ErrAuthorizationCancelled)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	code, err := parseCallback(callback, f.redirectScheme, state)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := f.client.GetTokenFromAuthCode(ctx, code, cv.Verifier(), f.redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %w", op, newProtocolError(resp.Error))
	}

	tokens := NewTokenSet(resp.Success, f.clock.Now())
	if err := f.verify(ctx, tokens); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := f.commit(ctx, tokens); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	f.logger.Debug("signed in")
	return tokens, nil
}

// parseCallback returns the authorization code from the callback url,
// after checking its scheme and state.
func parseCallback(callback, scheme, state string) (string, error) {
	const op = "oidc.parseCallback"
	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", op, err, ErrAuthorizationCallbackMalformed)
	}
	if !strings.EqualFold(u.Scheme, scheme) {
		return "", fmt.Errorf("%s: unexpected scheme %q: %w", op, u.Scheme, ErrAuthorizationCallbackMalformed)
	}
	q := u.Query()
	if len(q) == 0 {
		return "", fmt.Errorf("%s: no query parameters: %w", op, ErrAuthorizationCallbackMalformed)
	}
	if code := q.Get("error"); code != "" {
		return "", &AuthorizationError{Code: code, Description: q.Get("error_description")}
	}
	code, gotState := q.Get("code"), q.Get("state")
	switch {
	case code == "":
		return "", fmt.Errorf("%s: missing code: %w", op, ErrAuthorizationCallbackMalformed)
	case gotState == "":
		return "", fmt.Errorf("%s: missing state: %w", op, ErrAuthorizationCallbackMalformed)
	case gotState != state:
		return "", fmt.Errorf("%s: state does not match: %w", op, ErrAuthorizationCallbackMalformed)
	}
	return code, nil
}
