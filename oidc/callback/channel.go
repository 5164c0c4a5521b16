// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/myopenpass/openpass-go/oidc"
)

// ErrNoSignIn is returned by Deliver when no sign-in is waiting for a
// callback.
var ErrNoSignIn = errors.New("no sign-in in progress")

// OpenFunc presents the authorize url to the user, typically by opening it
// in the system browser.
type OpenFunc func(ctx context.Context, authURL string) error

// ChannelSession is an oidc.AuthenticationSession which hands the authorize
// url to an OpenFunc and then waits for the callback url to be delivered with
// Deliver, or for the user to give up with Cancel.
type ChannelSession struct {
	open   OpenFunc
	logger hclog.Logger

	mu      sync.Mutex
	waiting *waiter
}

type waiter struct {
	scheme string
	ch     chan result
}

type result struct {
	callbackURL string
	err         error
}

var _ oidc.AuthenticationSession = (*ChannelSession)(nil)

// NewChannelSession creates a ChannelSession.
//
// Supported options: WithLogger
func NewChannelSession(open OpenFunc, opt ...Option) (*ChannelSession, error) {
	const op = "callback.NewChannelSession"
	if open == nil {
		return nil, fmt.Errorf("%s: open func is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &ChannelSession{
		open:   open,
		logger: opts.withLogger.Named("channel-session"),
	}, nil
}

// Authenticate implements oidc.AuthenticationSession. Only one sign-in can
// wait at a time; starting another cancels the first.
func (s *ChannelSession) Authenticate(ctx context.Context, authURL, callbackScheme string) (string, error) {
	const op = "ChannelSession.Authenticate"
	w := &waiter{scheme: callbackScheme, ch: make(chan result, 1)}
	s.mu.Lock()
	if s.waiting != nil {
		s.waiting.ch <- result{err: oidc.ErrUserCancelled}
	}
	s.waiting = w
	s.mu.Unlock()
	defer s.clear(w)

	if err := s.open(ctx, authURL); err != nil {
		return "", fmt.Errorf("%s: unable to open authorize url: %w", op, err)
	}
	s.logger.Debug("waiting for callback")
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	case r := <-w.ch:
		if r.err != nil {
			return "", fmt.Errorf("%s: %w", op, r.err)
		}
		return r.callbackURL, nil
	}
}

// Deliver completes the waiting sign-in with callbackURL. A url that doesn't
// use the sign-in's callback scheme is rejected and the sign-in keeps
// waiting.
func (s *ChannelSession) Deliver(callbackURL string) error {
	const op = "ChannelSession.Deliver"
	u, err := url.Parse(callbackURL)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, oidc.ErrAuthorizationCallbackMalformed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting == nil {
		return fmt.Errorf("%s: %w", op, ErrNoSignIn)
	}
	if !strings.EqualFold(u.Scheme, s.waiting.scheme) {
		return fmt.Errorf("%s: unexpected scheme %q: %w", op, u.Scheme, oidc.ErrAuthorizationCallbackMalformed)
	}
	s.waiting.ch <- result{callbackURL: callbackURL}
	s.waiting = nil
	return nil
}

// Cancel ends the waiting sign-in, if any, as cancelled by the user.
func (s *ChannelSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting == nil {
		return
	}
	s.waiting.ch <- result{err: oidc.ErrUserCancelled}
	s.waiting = nil
}

func (s *ChannelSession) clear(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting == w {
		s.waiting = nil
	}
}
