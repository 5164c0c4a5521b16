// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// slowDownSeconds is added to the polling interval for every slow_down
// response (RFC 8628 section 3.5).
const slowDownSeconds int64 = 5

// DeviceAuthorizationFlow signs a user in with the device authorization
// grant (RFC 8628): FetchDeviceCode, show the user code, then
// FetchAccessToken.
type DeviceAuthorizationFlow struct {
	flow

	mu                 sync.Mutex
	slowDownMultiplier int64
}

// NewDeviceAuthorizationFlow creates a DeviceAuthorizationFlow. Completed
// tokens are passed to commit.
//
// Supported options: WithLogger, WithClock, WithValidator
func NewDeviceAuthorizationFlow(c *Config, client *Client, commit CommitFunc, opt ...Option) (*DeviceAuthorizationFlow, error) {
	const op = "oidc.NewDeviceAuthorizationFlow"
	f, err := newFlow("device-flow", c, client, commit, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &DeviceAuthorizationFlow{flow: f}, nil
}

// FetchDeviceCode starts a device authorization. A protocol error is returned
// as a *ProtocolError.
func (f *DeviceAuthorizationFlow) FetchDeviceCode(ctx context.Context) (*DeviceCode, error) {
	const op = "DeviceAuthorizationFlow.FetchDeviceCode"
	f.mu.Lock()
	f.slowDownMultiplier = 0
	f.mu.Unlock()

	resp, err := f.client.GetDeviceCode(ctx)
	if err == nil && resp.Error != nil {
		err = newProtocolError(resp.Error)
	}
	if err != nil {
		f.recordEvent(NewInfoEvent(f.client.ClientID(), eventDeviceCodeFailure, "Failed to fetch device code"))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewDeviceCode(resp.Success, f.clock.Now()), nil
}

// FetchAccessToken polls until the user authorizes the device. It returns an
// error matching ErrTokenExpired when the device code expires (fetch a new
// one to retry) and ErrAuthorizationCancelled when ctx is done. Transport
// errors end polling; call FetchAccessToken again to resume.
func (f *DeviceAuthorizationFlow) FetchAccessToken(ctx context.Context, dc *DeviceCode) (*TokenSet, error) {
	const op = "DeviceAuthorizationFlow.FetchAccessToken"
	if dc == nil {
		return nil, fmt.Errorf("%s: device code is nil: %w", op, ErrNilParameter)
	}
	for {
		tokens, err := f.waitAndCheckAuthorization(ctx, dc)
		switch {
		case err == nil:
			return tokens, nil
		case errors.Is(err, ErrAuthorizationPending), errors.Is(err, ErrSlowDown):
			continue
		case errors.Is(err, ErrAuthorizationCancelled):
			return nil, fmt.Errorf("%s: %w", op, err)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%s: %v: %w", op, err, ErrAuthorizationCancelled)
		case errors.Is(err, ErrTokenExpired):
			f.recordEvent(NewInfoEvent(f.client.ClientID(), eventDeviceTokenExpired, "Token expired"))
			return nil, fmt.Errorf("%s: %w", op, err)
		case errors.Is(err, ErrIDTokenVerificationFailed):
			// already reported by checkAuthorization
			return nil, fmt.Errorf("%s: %w", op, err)
		default:
			f.recordEvent(NewErrorEvent(f.client.ClientID(), eventDeviceTokenFailure, "Failed to fetch tokens from device code", currentStack()))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
}

// interval returns the current wait between polls.
func (f *DeviceAuthorizationFlow) interval(dc *DeviceCode) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Duration(dc.Interval+f.slowDownMultiplier*slowDownSeconds) * time.Second
}

func (f *DeviceAuthorizationFlow) waitAndCheckAuthorization(ctx context.Context, dc *DeviceCode) (*TokenSet, error) {
	if err := f.clock.Sleep(ctx, f.interval(dc)); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrAuthorizationCancelled)
	}
	tokens, err := f.checkAuthorization(ctx, dc)
	if errors.Is(err, ErrSlowDown) {
		f.mu.Lock()
		f.slowDownMultiplier++
		f.mu.Unlock()
	}
	return tokens, err
}

func (f *DeviceAuthorizationFlow) checkAuthorization(ctx context.Context, dc *DeviceCode) (*TokenSet, error) {
	resp, err := f.client.GetTokenFromDeviceCode(ctx, dc.DeviceCode)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, newProtocolError(resp.Error)
	}

	tokens := NewTokenSet(resp.Success, f.clock.Now())
	if err := f.verify(ctx, tokens); err != nil {
		f.recordEvent(NewErrorEvent(f.client.ClientID(), eventDeviceVerificationFailure, "Token verification failed", ""))
		return nil, err
	}
	if err := f.commit(ctx, tokens); err != nil {
		return nil, err
	}
	f.logger.Debug("device authorized")
	return tokens, nil
}
