// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenFlow_RefreshTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		m, _ := testManager(t, p)
		f, err := m.RefreshTokenFlow()
		require.NoError(err)

		got, err := f.RefreshTokens(ctx, "test-refresh-token")
		require.NoError(err)
		require.NotNil(got.IDToken)
		assert.True(got.Equal(m.Tokens()))
		assert.Empty(p.TelemetryEvents())
	})

	t.Run("missing-refresh-token", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		m, _ := testManager(t, p)
		f, err := m.RefreshTokenFlow()
		require.NoError(err)

		_, err = f.RefreshTokens(ctx, "")
		assert.ErrorIs(err, ErrInvalidParameter)
		assert.Equal(0, p.RequestCount("/"+tokenPath))
		assert.Empty(p.TelemetryEvents())
	})

	tests := []struct {
		name      string
		setup     func(p *TestProvider)
		token     string
		wantIsErr error
	}{
		{
			name:      "protocol-error",
			token:     "revoked",
			wantIsErr: ErrTokenProtocol,
		},
		{
			name:      "verification-failure",
			setup:     func(p *TestProvider) { p.SetCustomAudience("someone-else") },
			token:     "test-refresh-token",
			wantIsErr: ErrIDTokenVerificationFailed,
		},
		{
			name:      "missing-id-token",
			setup:     func(p *TestProvider) { p.OmitIDTokens() },
			token:     "test-refresh-token",
			wantIsErr: ErrIDTokenVerificationFailed,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			p := StartTestProvider(t)
			m, _ := testManager(t, p)

			// sign in first, so there are tokens to leave untouched
			f, err := m.RefreshTokenFlow()
			require.NoError(err)
			before, err := f.RefreshTokens(ctx, "test-refresh-token")
			require.NoError(err)

			if tt.setup != nil {
				tt.setup(p)
			}
			got, err := f.RefreshTokens(ctx, tt.token)
			require.Error(err)
			assert.Nil(got)
			assert.ErrorIs(err, tt.wantIsErr)
			assert.Same(before, m.Tokens())

			events := p.TelemetryEvents()
			require.Len(events, 1, "exactly one event describes the failure")
			assert.Equal(eventRefreshFailure, events[0].Name)
			assert.Equal(EventTypeError, events[0].EventType)
			assert.NotEmpty(events[0].StackTrace)
			assert.LessOrEqual(len([]rune(events[0].StackTrace)), maxStackTraceLen)
		})
	}

	t.Run("transport-error", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		m, _ := testManager(t, p)
		f, err := m.RefreshTokenFlow()
		require.NoError(err)

		p.Stop()
		_, err = f.RefreshTokens(ctx, "test-refresh-token")
		assert.ErrorIs(err, ErrTransport)
		assert.Nil(m.Tokens())
	})
}
