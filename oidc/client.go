// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/myopenpass/openpass-go/jwt"
	"golang.org/x/oauth2"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

// TokenResponse is the result of a token request: either Success or Error is
// set, depending on the response body.
type TokenResponse struct {
	Success *TokenPayload
	Error   *ErrorResponse
}

// DeviceAuthorizationResponse is the result of a device authorization
// request: either Success or Error is set, depending on the response body.
type DeviceAuthorizationResponse struct {
	Success *DeviceAuthorizationPayload
	Error   *ErrorResponse
}

// Client calls the OpenPass API. Protocol errors (an OAuth2 error body) are
// returned in the response values; a returned error means the exchange itself
// failed (TransportError) or its body couldn't be decoded (ErrDecoding).
type Client struct {
	baseURL  *url.URL
	clientID string
	params   RequestParameters
	http     *http.Client
	logger   hclog.Logger
}

// NewClient creates a Client for the config.
//
// Supported options: WithHTTPClient, WithLogger
func NewClient(c *Config, opt ...Option) (*Client, error) {
	const op = "oidc.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := baseURL(c.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidParameter)
	}
	opts := getClientOpts(opt...)
	hc := opts.withHTTPClient
	if hc == nil {
		if hc, err = c.HTTPClient(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &Client{
		baseURL:  u,
		clientID: c.ClientID,
		params:   c.RequestParameters(),
		http:     hc,
		logger:   opts.withLogger.Named("client"),
	}, nil
}

// ClientID returns the configured client id.
func (c *Client) ClientID() string { return c.clientID }

// AuthURL returns the url of the interactive authorize endpoint for a sign-in
// attempt.
func (c *Client) AuthURL(state string, cv *CodeVerifier, redirectURI string) (string, error) {
	const op = "Client.AuthURL"
	switch {
	case state == "":
		return "", fmt.Errorf("%s: missing state: %w", op, ErrAuthorizationURL)
	case cv == nil:
		return "", fmt.Errorf("%s: missing code verifier: %w", op, ErrAuthorizationURL)
	case redirectURI == "":
		return "", fmt.Errorf("%s: missing redirect uri: %w", op, ErrAuthorizationURL)
	}
	oc := oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: redirectURI,
		Scopes:      []string{gooidc.ScopeOpenID},
		Endpoint: oauth2.Endpoint{
			AuthURL: c.baseURL.ResolveReference(&url.URL{Path: authorizePath}).String(),
		},
	}
	authOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge_method", string(cv.Method())),
		oauth2.SetAuthURLParam("code_challenge", cv.Challenge()),
	}
	for k, v := range c.params.QueryParams() {
		authOpts = append(authOpts, oauth2.SetAuthURLParam(k, v[0]))
	}
	authURL := oc.AuthCodeURL(state, authOpts...)
	if _, err := url.ParseRequestURI(authURL); err != nil {
		return "", fmt.Errorf("%s: %v: %w", op, err, ErrAuthorizationURL)
	}
	return authURL, nil
}

// GetTokenFromAuthCode exchanges an authorization code.
func (c *Client) GetTokenFromAuthCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error) {
	const op = "Client.GetTokenFromAuthCode"
	return c.tokenRequest(ctx, op, authorizationCodeRequest(c.clientID, code, codeVerifier, redirectURI))
}

// RefreshTokens exchanges a refresh token.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	const op = "Client.RefreshTokens"
	return c.tokenRequest(ctx, op, refreshRequest(c.clientID, refreshToken))
}

// GetTokenFromDeviceCode polls the device token endpoint once.
func (c *Client) GetTokenFromDeviceCode(ctx context.Context, deviceCode string) (*TokenResponse, error) {
	const op = "Client.GetTokenFromDeviceCode"
	return c.tokenRequest(ctx, op, deviceTokenRequest(c.clientID, deviceCode))
}

func (c *Client) tokenRequest(ctx context.Context, op string, r *request) (*TokenResponse, error) {
	body, err := c.do(ctx, op, r)
	if err != nil {
		return nil, err
	}
	var resp TokenResponse
	if resp.Error, err = decodeErrorResponse(body); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrDecoding)
	}
	if resp.Error != nil {
		return &resp, nil
	}
	var p TokenPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrDecoding)
	}
	if p.AccessToken == "" {
		return nil, fmt.Errorf("%s: missing access_token: %w", op, ErrDecoding)
	}
	resp.Success = &p
	return &resp, nil
}

// GetDeviceCode starts a device authorization.
func (c *Client) GetDeviceCode(ctx context.Context) (*DeviceAuthorizationResponse, error) {
	const op = "Client.GetDeviceCode"
	body, err := c.do(ctx, op, authorizeDeviceRequest(c.clientID))
	if err != nil {
		return nil, err
	}
	var resp DeviceAuthorizationResponse
	if resp.Error, err = decodeErrorResponse(body); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrDecoding)
	}
	if resp.Error != nil {
		return &resp, nil
	}
	var p DeviceAuthorizationPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrDecoding)
	}
	if p.DeviceCode == "" {
		return nil, fmt.Errorf("%s: missing device_code: %w", op, ErrDecoding)
	}
	resp.Success = &p
	return &resp, nil
}

// FetchJWKS fetches the issuer's signing keys. Keys are never cached.
func (c *Client) FetchJWKS(ctx context.Context) (*jwt.JWKS, error) {
	const op = "Client.FetchJWKS"
	r := jwksRequest()
	req, err := r.httpRequest(ctx, c.baseURL, c.params)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	status, body, err := c.send(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%s: unexpected status %d: %w", op, status, ErrDecoding)
	}
	var keys jwt.JWKS
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrDecoding)
	}
	return &keys, nil
}

// RecordEvent sends a telemetry event. Callers are expected to ignore the
// error; it is returned so it can be logged.
func (c *Client) RecordEvent(ctx context.Context, ev TelemetryEvent) error {
	const op = "Client.RecordEvent"
	r, err := telemetryRequest(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req, err := r.httpRequest(ctx, c.baseURL, c.params)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	status, _, err := c.send(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%s: unexpected status %d: %w", op, status, ErrTransport)
	}
	return nil
}

// do executes r and returns the body regardless of status code.
func (c *Client) do(ctx context.Context, op string, r *request) ([]byte, error) {
	req, err := r.httpRequest(ctx, c.baseURL, c.params)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	status, body, err := c.send(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if status != http.StatusOK {
		c.logger.Debug("non-200 response", "op", op, "status", status)
	}
	return body, nil
}

func (c *Client) send(req *http.Request) (int, []byte, error) {
	c.logger.Trace("request", "method", req.Method, "url", req.URL.Redacted())
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// decodeErrorResponse returns the OAuth2 error in body, or nil when body is a
// JSON object without an error member.
func decodeErrorResponse(body []byte) (*ErrorResponse, error) {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, err
	}
	if e.Code == "" {
		return nil, nil
	}
	return &e, nil
}

type clientOptions struct {
	withLogger     hclog.Logger
	withHTTPClient *http.Client
}

func clientDefaults() clientOptions {
	return clientOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
