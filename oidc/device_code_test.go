// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDeviceCode(t *testing.T) {
	t.Parallel()
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name         string
		interval     int64
		wantInterval int64
	}{
		{name: "server-interval", interval: 10, wantInterval: 10},
		{name: "missing-interval", interval: 0, wantInterval: defaultInterval},
		{name: "negative-interval", interval: -1, wantInterval: defaultInterval},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			dc := NewDeviceCode(&DeviceAuthorizationPayload{
				DeviceCode:      "device",
				UserCode:        "USER-CODE",
				VerificationURI: "https://example.com/device",
				ExpiresIn:       600,
				Interval:        tt.interval,
			}, now)
			assert.Equal("device", dc.DeviceCode)
			assert.Equal("USER-CODE", dc.UserCode)
			assert.Equal("https://example.com/device", dc.VerificationURI)
			assert.Equal(now.Add(10*time.Minute), dc.ExpiresAt)
			assert.Equal(tt.wantInterval, dc.Interval)

			assert.False(dc.Expired(now))
			assert.True(dc.Expired(dc.ExpiresAt))
		})
	}
}
