// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/myopenpass/openpass-go/oidc/internal/broadcast"
	"golang.org/x/oauth2"
)

// Manager is the single owner of the current TokenSet. It is either signed
// out (Tokens returns nil) or signed in. Flows created by the Manager commit
// to it, and every change is broadcast to subscribers in the order it was
// made.
type Manager struct {
	config            *Config
	client            *Client
	storage           SecureStorage
	logger            hclog.Logger
	clock             Clock
	validator         IDTokenValidator
	unreliableStorage bool

	// mu guards current and orders enqueues with it, so notifications
	// follow commit order.
	mu      sync.Mutex
	current *TokenSet

	queue   *broadcast.Queue
	updates *broadcast.Broadcaster[*TokenSet]
}

// NewManager creates a Manager and loads any tokens previously saved in its
// storage. A missing, unreadable or malformed stored value leaves the Manager
// signed out.
//
// Supported options: WithStorage, WithUnreliableStorage, WithLogger,
// WithHTTPClient, WithClock, WithValidator
func NewManager(ctx context.Context, c *Config, opt ...Option) (*Manager, error) {
	const op = "oidc.NewManager"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	opts := getManagerOpts(opt...)
	logger := opts.withLogger.Named("manager")

	client, err := NewClient(c, WithHTTPClient(opts.withHTTPClient), WithLogger(opts.withLogger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := &Manager{
		config:            c,
		client:            client,
		storage:           opts.withStorage,
		logger:            logger,
		clock:             opts.withClock,
		validator:         opts.withValidator,
		unreliableStorage: opts.withUnreliableStorage,
		queue:             broadcast.NewQueue(),
		updates:           broadcast.NewBroadcaster[*TokenSet](),
	}
	m.current = m.load(ctx)
	return m, nil
}

func (m *Manager) load(ctx context.Context) *TokenSet {
	b, err := m.storage.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		m.logger.Warn("unable to load stored tokens", "error", err)
		return nil
	}
	t, err := unmarshalTokenSet(b)
	if err != nil {
		m.logger.Warn("discarding stored tokens", "error", err)
		return nil
	}
	if t.IDToken == nil {
		m.logger.Warn("discarding stored tokens without a valid id_token")
		return nil
	}
	return t
}

// Client returns the API client the Manager's flows use.
func (m *Manager) Client() *Client { return m.client }

// Tokens returns the current TokenSet, or nil when signed out.
func (m *Manager) Tokens() *TokenSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetTokens makes t current, saves it and notifies subscribers. t must hold a
// parsed id_token. When two calls race, the last to run wins and subscribers
// see both values in that order.
//
// A failure to save is logged; t still becomes current for the life of the
// process.
func (m *Manager) SetTokens(ctx context.Context, t *TokenSet) error {
	const op = "Manager.SetTokens"
	switch {
	case t == nil:
		return fmt.Errorf("%s: tokens are nil: %w", op, ErrNilParameter)
	case t.IDToken == nil:
		return fmt.Errorf("%s: tokens have no valid id_token: %w", op, ErrInvalidParameter)
	}
	b, err := marshalTokenSet(t)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.storage.Save(ctx, b); err != nil {
		m.logger.Error("unable to save tokens", "error", err)
	}
	m.current = t
	m.publish(t)
	return nil
}

// SignOut deletes the stored tokens and, once that succeeds, clears the
// current TokenSet and notifies subscribers with nil. When the delete fails
// the Manager stays signed in and an error matching ErrStorage is returned,
// unless the Manager was created WithUnreliableStorage.
func (m *Manager) SignOut(ctx context.Context) error {
	const op = "Manager.SignOut"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.storage.Delete(ctx); err != nil && !errors.Is(err, ErrNotFound) {
		if !m.unreliableStorage {
			return fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
		}
		m.logger.Warn("ignoring failure to delete stored tokens", "error", err)
	}
	m.current = nil
	m.publish(nil)
	return nil
}

// publish must be called with mu held.
func (m *Manager) publish(t *TokenSet) {
	if !m.queue.Enqueue(func() { m.updates.Send(t) }) {
		m.logger.Debug("manager closed, dropping notification")
	}
}

// Subscription receives every TokenSet the Manager commits after Subscribe
// returned, nil meaning signed out. C is closed after Cancel or Close.
type Subscription struct {
	C <-chan *TokenSet

	sub *broadcast.Subscription[*TokenSet]
}

// Cancel stops the subscription. Other subscribers are unaffected.
func (s *Subscription) Cancel() {
	s.sub.Cancel()
}

// Subscribe returns a new Subscription. It does not receive the current
// value, only later changes.
func (m *Manager) Subscribe() (*Subscription, error) {
	const op = "Manager.Subscribe"
	sub, err := m.updates.NewSubscription()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.mu.Lock()
	ok := m.queue.Enqueue(func() { m.updates.Register(sub) })
	m.mu.Unlock()
	if !ok {
		sub.Cancel()
		return nil, fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return &Subscription{C: sub.C, sub: sub}, nil
}

// SignInFlow creates a SignInFlow that commits to the Manager.
func (m *Manager) SignInFlow(session AuthenticationSession) (*SignInFlow, error) {
	return NewSignInFlow(m.config, m.client, session, m.SetTokens, m.flowOpts()...)
}

// DeviceAuthorizationFlow creates a DeviceAuthorizationFlow that commits to
// the Manager.
func (m *Manager) DeviceAuthorizationFlow() (*DeviceAuthorizationFlow, error) {
	return NewDeviceAuthorizationFlow(m.config, m.client, m.SetTokens, m.flowOpts()...)
}

// RefreshTokenFlow creates a RefreshTokenFlow that commits to the Manager.
func (m *Manager) RefreshTokenFlow() (*RefreshTokenFlow, error) {
	return NewRefreshTokenFlow(m.config, m.client, m.SetTokens, m.flowOpts()...)
}

func (m *Manager) flowOpts() []Option {
	return []Option{
		WithLogger(m.logger),
		WithClock(m.clock),
		WithValidator(m.validator),
	}
}

// TokenSource returns an oauth2.TokenSource for the current tokens. An
// expired access token is refreshed with the refresh flow, which commits
// the new tokens to the Manager. ctx is used for refresh requests.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

// Token implements oauth2.TokenSource.
func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	const op = "Manager.TokenSource"
	t := s.m.Tokens()
	if t == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotSignedIn)
	}
	if t.Valid(WithNow(s.m.clock.Now)) {
		return t.Token(), nil
	}
	if t.RefreshToken == "" {
		return nil, fmt.Errorf("%s: access token expired and no refresh token: %w", op, ErrTokenExpired)
	}
	f, err := s.m.RefreshTokenFlow()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	nt, err := f.RefreshTokens(s.ctx, t.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nt.Token(), nil
}

// Close delivers notifications already queued, then closes every
// subscription. SetTokens and SignOut still update the current value after
// Close, but nobody is notified.
func (m *Manager) Close() {
	m.queue.Close()
	m.updates.Close()
}

type managerOptions struct {
	withLogger            hclog.Logger
	withHTTPClient        *http.Client
	withClock             Clock
	withValidator         IDTokenValidator
	withStorage           SecureStorage
	withUnreliableStorage bool
}

func managerDefaults() managerOptions {
	return managerOptions{
		withLogger: hclog.NewNullLogger(),
		withClock:  RealClock(),
	}
}

func getManagerOpts(opt ...Option) managerOptions {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withStorage == nil {
		opts.withStorage = NewMemoryStorage()
	}
	return opts
}
