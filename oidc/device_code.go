// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "time"

// defaultInterval is the polling interval from RFC 8628 section 3.2 used when
// the server doesn't send one.
const defaultInterval int64 = 5

// DeviceAuthorizationPayload is the successful body of a device authorization
// response (RFC 8628 section 3.2).
type DeviceAuthorizationPayload struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval,omitempty"`
}

// DeviceCode is issued by DeviceAuthorizationFlow.FetchDeviceCode. Show
// UserCode and VerificationURI (or VerificationURIComplete) to the user, then
// pass the DeviceCode to FetchAccessToken.
type DeviceCode struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time

	// Interval is the number of seconds to wait between polls.
	Interval int64
}

// NewDeviceCode creates a DeviceCode from a device authorization response
// received at now.
func NewDeviceCode(p *DeviceAuthorizationPayload, now time.Time) *DeviceCode {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &DeviceCode{
		DeviceCode:              p.DeviceCode,
		UserCode:                p.UserCode,
		VerificationURI:         p.VerificationURI,
		VerificationURIComplete: p.VerificationURIComplete,
		ExpiresAt:               now.Add(time.Duration(p.ExpiresIn) * time.Second),
		Interval:                interval,
	}
}

// Expired reports whether the device code has expired at now.
func (d *DeviceCode) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}
