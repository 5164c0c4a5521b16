// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/myopenpass/openpass-go/jwt"
)

// telemetryTimeout bounds a single telemetry request. Telemetry uses its own
// context so events are still sent when the flow's context is done.
const telemetryTimeout = 5 * time.Second

// IDTokenValidator verifies an id_token against a key set. See
// jwt.Validator.
type IDTokenValidator interface {
	Validate(ctx context.Context, t *jwt.IDToken, keys *jwt.JWKS) (bool, error)
}

// IDTokenValidatorFunc adapts a func to an IDTokenValidator.
type IDTokenValidatorFunc func(ctx context.Context, t *jwt.IDToken, keys *jwt.JWKS) (bool, error)

// Validate calls f.
func (f IDTokenValidatorFunc) Validate(ctx context.Context, t *jwt.IDToken, keys *jwt.JWKS) (bool, error) {
	return f(ctx, t, keys)
}

// AuthenticationSession presents the authorize url to the user (typically in
// a browser) and returns the callback url the authorization server
// redirected to. The callback url must use callbackScheme.
//
// Implementations return an error matching ErrUserCancelled when the user
// dismisses the session.
type AuthenticationSession interface {
	Authenticate(ctx context.Context, authURL, callbackScheme string) (callbackURL string, err error)
}

// CommitFunc receives the tokens of a completed flow. Manager.SetTokens is
// the usual CommitFunc.
type CommitFunc func(ctx context.Context, t *TokenSet) error

// flowOptions are shared by every flow.
type flowOptions struct {
	withLogger    hclog.Logger
	withClock     Clock
	withValidator IDTokenValidator
}

func flowDefaults() flowOptions {
	return flowOptions{
		withLogger: hclog.NewNullLogger(),
		withClock:  RealClock(),
	}
}

func getFlowOpts(opt ...Option) flowOptions {
	opts := flowDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// flow holds what every flow needs.
type flow struct {
	client    *Client
	validator IDTokenValidator
	clock     Clock
	logger    hclog.Logger
	commit    CommitFunc
}

func newFlow(name string, c *Config, client *Client, commit CommitFunc, opt ...Option) (flow, error) {
	switch {
	case c == nil:
		return flow{}, fmt.Errorf("config is nil: %w", ErrNilParameter)
	case client == nil:
		return flow{}, fmt.Errorf("client is nil: %w", ErrNilParameter)
	case commit == nil:
		return flow{}, fmt.Errorf("commit func is nil: %w", ErrNilParameter)
	}
	opts := getFlowOpts(opt...)
	v := opts.withValidator
	if v == nil {
		jv, err := jwt.NewValidator(c.Issuer(), c.ClientID, jwt.WithNow(opts.withClock.Now))
		if err != nil {
			return flow{}, err
		}
		v = jv
	}
	return flow{
		client:    client,
		validator: v,
		clock:     opts.withClock,
		logger:    opts.withLogger.Named(name),
		commit:    commit,
	}, nil
}

// verify checks the id_token of t against freshly fetched keys.
func (f *flow) verify(ctx context.Context, t *TokenSet) error {
	if t.IDToken == nil {
		return &VerificationError{}
	}
	keys, err := f.client.FetchJWKS(ctx)
	if err != nil {
		f.logger.Error("unable to fetch jwks", "error", err)
		return &VerificationError{Err: err}
	}
	ok, err := f.validator.Validate(ctx, t.IDToken, keys)
	switch {
	case err != nil:
		f.logger.Error("error verifying id_token", "error", err)
		return &VerificationError{Err: err}
	case !ok:
		f.logger.Warn("id_token rejected", "kid", t.IDToken.KeyID)
		return &VerificationError{}
	}
	return nil
}

// recordEvent sends ev, logging and otherwise ignoring any failure.
func (f *flow) recordEvent(ev TelemetryEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
	defer cancel()
	if err := f.client.RecordEvent(ctx, ev); err != nil {
		f.logger.Debug("unable to record telemetry event", "event", ev.Name, "error", err)
	}
}
