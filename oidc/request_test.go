// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = RequestParameters{
	SDKName:    "openpass-go-sdk",
	SDKVersion: "1.0.0",
	Device: DeviceInfo{
		Platform:        "linux",
		PlatformVersion: "go1.19",
		Manufacturer:    "unknown",
		Model:           "amd64",
	},
}

func TestRequestParameters(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal(map[string]string{
		"SDK-Name":                "openpass-go-sdk",
		"SDK-Version":             "1.0.0",
		"Device-Platform":         "linux",
		"Device-Platform-Version": "go1.19",
		"Device-Manufacturer":     "unknown",
		"Device-Model":            "amd64",
	}, testParams.Headers())
	assert.Equal(url.Values{
		"sdk_name":                {"openpass-go-sdk"},
		"sdk_version":             {"1.0.0"},
		"device_platform":         {"linux"},
		"device_platform_version": {"go1.19"},
		"device_manufacturer":     {"unknown"},
		"device_model":            {"amd64"},
	}, testParams.QueryParams())
}

func Test_baseURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		path string
		want string
	}{
		{in: "https://auth.myopenpass.com/", path: tokenPath, want: "https://auth.myopenpass.com/v1/api/token"},
		{in: "https://auth.myopenpass.com", path: tokenPath, want: "https://auth.myopenpass.com/v1/api/token"},
		{in: "http://localhost:8080/openpass", path: jwksPath, want: "http://localhost:8080/openpass/.well-known/jwks"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			u, err := baseURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.ResolveReference(&url.URL{Path: tt.path}).String())
		})
	}
}

func TestRequest_httpRequest(t *testing.T) {
	t.Parallel()
	base, err := baseURL("https://auth.myopenpass.com")
	require.NoError(t, err)

	readForm := func(t *testing.T, req *http.Request) url.Values {
		t.Helper()
		b, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		v, err := url.ParseQuery(string(b))
		require.NoError(t, err)
		return v
	}

	tests := []struct {
		name            string
		r               *request
		wantMethod      string
		wantURL         string
		wantContentType string
		wantForm        url.Values
	}{
		{
			name:            "authorization-code",
			r:               authorizationCodeRequest("client", "code", "verifier", "com.myopenpass.auth.client://host"),
			wantMethod:      http.MethodPost,
			wantURL:         "https://auth.myopenpass.com/v1/api/token",
			wantContentType: contentTypeForm,
			wantForm: url.Values{
				"client_id":     {"client"},
				"code":          {"code"},
				"code_verifier": {"verifier"},
				"grant_type":    {"authorization_code"},
				"redirect_uri":  {"com.myopenpass.auth.client://host"},
			},
		},
		{
			name:            "refresh",
			r:               refreshRequest("client", "refresh"),
			wantMethod:      http.MethodPost,
			wantURL:         "https://auth.myopenpass.com/v1/api/token",
			wantContentType: contentTypeForm,
			wantForm: url.Values{
				"client_id":     {"client"},
				"grant_type":    {"refresh_token"},
				"refresh_token": {"refresh"},
			},
		},
		{
			name:            "authorize-device",
			r:               authorizeDeviceRequest("client"),
			wantMethod:      http.MethodPost,
			wantURL:         "https://auth.myopenpass.com/v1/api/authorize-device",
			wantContentType: contentTypeForm,
			wantForm: url.Values{
				"client_id": {"client"},
				"scope":     {"openid"},
			},
		},
		{
			name:            "device-token",
			r:               deviceTokenRequest("client", "device"),
			wantMethod:      http.MethodPost,
			wantURL:         "https://auth.myopenpass.com/v1/api/device-token",
			wantContentType: contentTypeForm,
			wantForm: url.Values{
				"client_id":   {"client"},
				"device_code": {"device"},
				"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
			},
		},
		{
			name:       "jwks",
			r:          jwksRequest(),
			wantMethod: http.MethodGet,
			wantURL:    "https://auth.myopenpass.com/.well-known/jwks",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			req, err := tt.r.httpRequest(context.Background(), base, testParams)
			require.NoError(err)
			assert.Equal(tt.wantMethod, req.Method)
			assert.Equal(tt.wantURL, req.URL.String())
			assert.Equal(tt.wantContentType, req.Header.Get("Content-Type"))
			assert.Equal(contentTypeJSON, req.Header.Get("Accept"))
			for name, v := range testParams.Headers() {
				assert.Equal([]string{v}, req.Header[name], "header %s", name)
			}
			if tt.wantForm == nil {
				assert.Nil(req.Body)
				return
			}
			assert.Equal(tt.wantForm, readForm(t, req))
		})
	}

	t.Run("telemetry", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := telemetryRequest(NewInfoEvent("client", "name", "message"))
		require.NoError(err)
		req, err := r.httpRequest(context.Background(), base, testParams)
		require.NoError(err)
		assert.Equal(http.MethodPost, req.Method)
		assert.Equal("https://auth.myopenpass.com/v1/api/telemetry/sdk_event", req.URL.String())
		assert.Equal(contentTypeJSON, req.Header.Get("Content-Type"))
		b, err := io.ReadAll(req.Body)
		require.NoError(err)
		assert.JSONEq(`{"client_id":"client","name":"name","message":"message","event_type":"info"}`, string(b))
	})
}
