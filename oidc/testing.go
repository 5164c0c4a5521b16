// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// TestClock is a Clock whose Sleep returns immediately after advancing the
// clock by the requested duration. Every requested duration is recorded.
type TestClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

var _ Clock = (*TestClock)(nil)

// NewTestClock creates a TestClock reading now.
func NewTestClock(now time.Time) *TestClock {
	return &TestClock{now: now}
}

// Now implements Clock.
func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock. It returns ctx.Err() without recording anything
// when ctx is already done.
func (c *TestClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Advance moves the clock forward by d.
func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns the durations passed to Sleep, in order.
func (c *TestClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// TestSession is an AuthenticationSession that requests the authorize url
// without a browser and returns the redirect location, which is where the
// authorization server sends the user after sign-in.
type TestSession struct {
	client *http.Client

	mu       sync.Mutex
	err      error
	rewrite  func(callbackURL string) string
	lastURL  string
	attempts int
}

var _ AuthenticationSession = (*TestSession)(nil)

// NewTestSession creates a TestSession that uses client, which must trust
// the authorization server. Redirects are never followed.
func NewTestSession(client *http.Client) *TestSession {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &TestSession{client: &c}
}

// SetError makes Authenticate fail with err, for example ErrUserCancelled.
func (s *TestSession) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetCallbackRewrite lets a test alter the callback url before it is
// returned, to simulate a tampered or stale callback.
func (s *TestSession) SetCallbackRewrite(f func(callbackURL string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewrite = f
}

// LastAuthURL returns the authorize url most recently presented.
func (s *TestSession) LastAuthURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastURL
}

// Attempts returns how many times Authenticate was called.
func (s *TestSession) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Authenticate implements AuthenticationSession.
func (s *TestSession) Authenticate(ctx context.Context, authURL, _ string) (string, error) {
	s.mu.Lock()
	s.attempts++
	s.lastURL = authURL
	err, rewrite := s.err, s.rewrite
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return "", fmt.Errorf("TestSession.Authenticate: unexpected status %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", errors.New("TestSession.Authenticate: missing Location header")
	}
	if rewrite != nil {
		loc = rewrite(loc)
	}
	return loc, nil
}
