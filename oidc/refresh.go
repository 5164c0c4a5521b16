// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
)

// RefreshTokenFlow exchanges a refresh token for a new TokenSet.
type RefreshTokenFlow struct {
	flow
}

// NewRefreshTokenFlow creates a RefreshTokenFlow. Completed tokens are passed
// to commit.
//
// Supported options: WithLogger, WithClock, WithValidator
func NewRefreshTokenFlow(c *Config, client *Client, commit CommitFunc, opt ...Option) (*RefreshTokenFlow, error) {
	const op = "oidc.NewRefreshTokenFlow"
	f, err := newFlow("refresh-flow", c, client, commit, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &RefreshTokenFlow{flow: f}, nil
}

// RefreshTokens exchanges refreshToken. Every failure is also reported to
// telemetry; nothing is committed on error.
func (f *RefreshTokenFlow) RefreshTokens(ctx context.Context, refreshToken string) (*TokenSet, error) {
	const op = "RefreshTokenFlow.RefreshTokens"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: missing refresh token: %w", op, ErrInvalidParameter)
	}
	tokens, err := f.refresh(ctx, refreshToken)
	if err != nil {
		f.recordEvent(NewErrorEvent(f.client.ClientID(), eventRefreshFailure, "Failed to refresh tokens", currentStack()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tokens, nil
}

func (f *RefreshTokenFlow) refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	resp, err := f.client.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, newProtocolError(resp.Error)
	}
	tokens := NewTokenSet(resp.Success, f.clock.Now())
	if err := f.verify(ctx, tokens); err != nil {
		return nil, err
	}
	if err := f.commit(ctx, tokens); err != nil {
		return nil, err
	}
	f.logger.Debug("tokens refreshed")
	return tokens, nil
}
