// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// Paths relative to the configured base URL.
const (
	authorizePath       = "v1/api/authorize"
	tokenPath           = "v1/api/token"
	authorizeDevicePath = "v1/api/authorize-device"
	deviceTokenPath     = "v1/api/device-token"
	jwksPath            = ".well-known/jwks"
	telemetryPath       = "v1/api/telemetry/sdk_event"
)

// Grant types sent to the token endpoints.
const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"
	grantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
)

// RequestParameters identify the SDK and the device. They are sent as headers
// on every API request and as query parameters on the authorize url.
type RequestParameters struct {
	SDKName    string
	SDKVersion string
	Device     DeviceInfo
}

type param struct {
	header string
	query  string
	value  string
}

func (p RequestParameters) params() []param {
	return []param{
		{header: "SDK-Name", query: "sdk_name", value: p.SDKName},
		{header: "SDK-Version", query: "sdk_version", value: p.SDKVersion},
		{header: "Device-Platform", query: "device_platform", value: p.Device.Platform},
		{header: "Device-Platform-Version", query: "device_platform_version", value: p.Device.PlatformVersion},
		{header: "Device-Manufacturer", query: "device_manufacturer", value: p.Device.Manufacturer},
		{header: "Device-Model", query: "device_model", value: p.Device.Model},
	}
}

// Headers returns the parameters as header name/value pairs. Names keep the
// case they are sent with.
func (p RequestParameters) Headers() map[string]string {
	h := make(map[string]string, 6)
	for _, v := range p.params() {
		h[v.header] = v.value
	}
	return h
}

// QueryParams returns the parameters as authorize url query parameters.
func (p RequestParameters) QueryParams() url.Values {
	q := make(url.Values, 6)
	for _, v := range p.params() {
		q.Set(v.query, v.value)
	}
	return q
}

// request describes a single call to the OpenPass API.
type request struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func formRequest(path string, form url.Values) *request {
	return &request{
		method:      http.MethodPost,
		path:        path,
		contentType: contentTypeForm,
		body:        []byte(form.Encode()),
	}
}

func authorizationCodeRequest(clientID, code, codeVerifier, redirectURI string) *request {
	return formRequest(tokenPath, url.Values{
		"client_id":     {clientID},
		"code_verifier": {codeVerifier},
		"code":          {code},
		"grant_type":    {grantTypeAuthorizationCode},
		"redirect_uri":  {redirectURI},
	})
}

func refreshRequest(clientID, refreshToken string) *request {
	return formRequest(tokenPath, url.Values{
		"client_id":     {clientID},
		"grant_type":    {grantTypeRefreshToken},
		"refresh_token": {refreshToken},
	})
}

func authorizeDeviceRequest(clientID string) *request {
	return formRequest(authorizeDevicePath, url.Values{
		"client_id": {clientID},
		"scope":     {gooidc.ScopeOpenID},
	})
}

func deviceTokenRequest(clientID, deviceCode string) *request {
	return formRequest(deviceTokenPath, url.Values{
		"client_id":   {clientID},
		"device_code": {deviceCode},
		"grant_type":  {grantTypeDeviceCode},
	})
}

func jwksRequest() *request {
	return &request{
		method: http.MethodGet,
		path:   jwksPath,
	}
}

func telemetryRequest(ev TelemetryEvent) (*request, error) {
	const op = "oidc.telemetryRequest"
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &request{
		method:      http.MethodPost,
		path:        telemetryPath,
		contentType: contentTypeJSON,
		body:        b,
	}, nil
}

// httpRequest builds the *http.Request for r against base.
func (r *request) httpRequest(ctx context.Context, base *url.URL, params RequestParameters) (*http.Request, error) {
	u := base.ResolveReference(&url.URL{Path: r.path})
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", contentTypeJSON)
	for name, v := range params.Headers() {
		// set directly so the names go out with their documented case
		req.Header[name] = []string{v}
	}
	return req, nil
}

// baseURL parses s and ensures it ends with a "/" so relative paths resolve
// beneath it.
func baseURL(s string) (*url.URL, error) {
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return url.Parse(s)
}
