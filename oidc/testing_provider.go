// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"encoding/pem"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/myopenpass/openpass-go/jwt"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	josejwt "gopkg.in/square/go-jose.v2/jwt"
)

// Defaults of the TestProvider's replies.
const (
	TestProviderClientID     = "test-client-id"
	TestProviderRedirectHost = "callback"
	TestProviderKeyID        = "test-key-id"
	TestProviderSubject      = "r3qXcK2bix9eFECzsU3Sbmh0K16fatW6"
	TestProviderEmail        = "alice@example.com"
	TestProviderUserCode     = "ABCD-EFGH"
	TestProviderExpiresIn    = 3600
)

// TestProvider is a local https server implementing the OpenPass API: the
// authorize redirect, both token endpoints, device authorization, jwks and
// telemetry. Tokens it issues are RS256 signed and verify against its jwks.
// It records the telemetry events and request headers it receives.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	keyID      string
	publicKey  *rsa.PublicKey
	privateKey *rsa.PrivateKey
	jwks       *jwt.JWKS

	mu                   sync.Mutex
	clientID             string
	expectedAuthCode     string
	expectedRefreshToken string
	expectedDeviceCode   string
	authError            *ErrorResponse
	tokenError           *ErrorResponse
	deviceCodeError      *ErrorResponse
	deviceTokenReplies   []string
	deviceInterval       int64
	codeChallenge        string
	customClaims         map[string]interface{}
	customAudience       string
	omitIDToken          bool
	issued               int

	telemetry []TelemetryEvent
	requests  map[string]int
	headers   map[string]http.Header

	t *testing.T

	// errorf reports failures from handler goroutines, where FailNow is not
	// allowed.
	errorf func(format string, args ...interface{})
}

// StartTestProvider creates a disposable TestProvider, stopped when the test
// ends.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		keyID:                TestProviderKeyID,
		clientID:             TestProviderClientID,
		expectedAuthCode:     "test-auth-code",
		expectedRefreshToken: "test-refresh-token",
		expectedDeviceCode:   "test-device-code",
		deviceInterval:       defaultInterval,
		requests:             map[string]int{},
		headers:              map[string]http.Header{},
		t:                    t,
		errorf:               t.Errorf,
	}
	p.publicKey, p.privateKey = jwt.TestGenerateKeys(t)
	p.jwks = jwt.TestJWKS(t, p.publicKey, p.keyID)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(ioutil.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the base URL of the test provider's running webserver, which
// is also the issuer of its tokens.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns an http client which trusts the test provider.
func (p *TestProvider) HTTPClient() *http.Client { return p.httpServer.Client() }

// SigningKeys returns the key pair the test provider signs id_tokens with,
// and its key id.
func (p *TestProvider) SigningKeys() (pub *rsa.PublicKey, priv *rsa.PrivateKey, keyID string) {
	return p.publicKey, p.privateKey, p.keyID
}

// Config returns a valid Config for the test provider. opt is applied after
// the test provider's environment and CA.
func (p *TestProvider) Config(opt ...Option) *Config {
	p.t.Helper()
	p.mu.Lock()
	clientID := p.clientID
	p.mu.Unlock()
	opts := append([]Option{
		WithEnvironment(CustomEnvironment(p.Addr() + "/")),
		WithProviderCA(p.caCert),
	}, opt...)
	c, err := NewConfig(clientID, TestProviderRedirectHost, opts...)
	require.NoError(p.t, err)
	return c
}

// SetClientID configures the client id the test provider expects and puts
// in the aud claim.
func (p *TestProvider) SetClientID(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
}

// SetExpectedAuthCode configures the code returned by the authorize redirect
// and accepted by the token endpoint. An empty code makes authorize fail with
// access_denied.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedRefreshToken configures the refresh token the token endpoint
// accepts.
func (p *TestProvider) SetExpectedRefreshToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedRefreshToken = token
}

// SetAuthError makes the authorize redirect carry error and error_description
// instead of a code.
func (p *TestProvider) SetAuthError(code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = &ErrorResponse{Code: code, Description: description}
}

// SetTokenError makes the token endpoint reply with an OAuth2 error body.
// Pass an empty code to clear it.
func (p *TestProvider) SetTokenError(code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenError = nil
	if code != "" {
		p.tokenError = &ErrorResponse{Code: code, Description: description}
	}
}

// SetDeviceCodeError makes the device authorization endpoint reply with an
// OAuth2 error body. Pass an empty code to clear it.
func (p *TestProvider) SetDeviceCodeError(code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deviceCodeError = nil
	if code != "" {
		p.deviceCodeError = &ErrorResponse{Code: code, Description: description}
	}
}

// SetDeviceTokenReplies scripts the device token endpoint. Each poll consumes
// one reply: an OAuth2 error code such as authorization_pending, or "" for
// tokens. Once the script is used up every poll gets tokens.
func (p *TestProvider) SetDeviceTokenReplies(codes ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deviceTokenReplies = codes
}

// SetDeviceInterval configures the interval returned with device codes.
func (p *TestProvider) SetDeviceInterval(seconds int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deviceInterval = seconds
}

// SetCustomClaims lets you set claims to return in the id_tokens issued.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetCustomAudience configures what audience value to embed in the id_tokens
// issued.
func (p *TestProvider) SetCustomAudience(customAudience string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = customAudience
}

// OmitIDTokens forces an error state where token replies do not include an
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// TelemetryEvents returns the telemetry events received, in order.
func (p *TestProvider) TelemetryEvents() []TelemetryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TelemetryEvent(nil), p.telemetry...)
}

// RequestCount returns the number of requests received for path, for example
// "/v1/api/token".
func (p *TestProvider) RequestCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[path]
}

// LastHeaders returns the headers of the most recent request for path.
func (p *TestProvider) LastHeaders(path string) http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headers[path].Clone()
}

// LastCodeChallenge returns the code_challenge of the most recent authorize
// request.
func (p *TestProvider) LastCodeChallenge() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codeChallenge
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests[req.URL.Path]++
	p.headers[req.URL.Path] = req.Header.Clone()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/" + authorizePath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.authorize(w, req)

	case "/" + tokenPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.token(w, req)

	case "/" + authorizeDevicePath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.authorizeDevice(w, req)

	case "/" + deviceTokenPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.deviceToken(w, req)

	case "/" + jwksPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/" + telemetryPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var ev TelemetryEvent
		if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.telemetry = append(p.telemetry, ev)
		_, _ = w.Write([]byte("{}"))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) authorize(w http.ResponseWriter, req *http.Request) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri")
	if redirectURI == "" {
		_ = p.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "missing redirect_uri parameter")
		return
	}
	switch {
	case p.authError != nil:
		p.writeAuthErrorResponse(w, req, p.authError.Code, p.authError.Description)
		return
	case qv.Get("response_type") != "code":
		p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
		return
	case qv.Get("scope") != "openid":
		p.writeAuthErrorResponse(w, req, "invalid_scope", "")
		return
	case qv.Get("client_id") != p.clientID:
		p.writeAuthErrorResponse(w, req, "unauthorized_client", "")
		return
	case qv.Get("state") == "":
		p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
		return
	case qv.Get("code_challenge_method") != string(S256), qv.Get("code_challenge") == "":
		p.writeAuthErrorResponse(w, req, "invalid_request", "pkce required")
		return
	case p.expectedAuthCode == "":
		p.writeAuthErrorResponse(w, req, "access_denied", "")
		return
	}
	p.codeChallenge = qv.Get("code_challenge")

	redirectURI += "?state=" + url.QueryEscape(qv.Get("state")) +
		"&code=" + url.QueryEscape(p.expectedAuthCode)
	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) token(w http.ResponseWriter, req *http.Request) {
	if req.FormValue("client_id") != p.clientID {
		_ = p.writeErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}
	if p.tokenError != nil {
		_ = p.writeErrorResponse(w, http.StatusBadRequest, p.tokenError.Code, p.tokenError.Description)
		return
	}
	switch req.FormValue("grant_type") {
	case grantTypeAuthorizationCode:
		switch {
		case req.FormValue("redirect_uri") == "":
			_ = p.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "missing redirect_uri")
			return
		case req.FormValue("code") != p.expectedAuthCode:
			_ = p.writeErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
			return
		case CreateCodeChallenge(req.FormValue("code_verifier")) != p.codeChallenge:
			_ = p.writeErrorResponse(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match code_challenge")
			return
		}
	case grantTypeRefreshToken:
		if req.FormValue("refresh_token") != p.expectedRefreshToken {
			_ = p.writeErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected refresh token")
			return
		}
	default:
		_ = p.writeErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}
	p.writeTokens(w)
}

func (p *TestProvider) authorizeDevice(w http.ResponseWriter, req *http.Request) {
	switch {
	case req.FormValue("client_id") != p.clientID:
		_ = p.writeErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	case req.FormValue("scope") != "openid":
		_ = p.writeErrorResponse(w, http.StatusBadRequest, "invalid_scope", "")
		return
	case p.deviceCodeError != nil:
		_ = p.writeErrorResponse(w, http.StatusBadRequest, p.deviceCodeError.Code, p.deviceCodeError.Description)
		return
	}
	_ = p.writeJSON(w, &DeviceAuthorizationPayload{
		DeviceCode:              p.expectedDeviceCode,
		UserCode:                TestProviderUserCode,
		VerificationURI:         p.Addr() + "/device",
		VerificationURIComplete: p.Addr() + "/device?user_code=" + TestProviderUserCode,
		ExpiresIn:               600,
		Interval:                p.deviceInterval,
	})
}

func (p *TestProvider) deviceToken(w http.ResponseWriter, req *http.Request) {
	switch {
	case req.FormValue("client_id") != p.clientID:
		_ = p.writeErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	case req.FormValue("grant_type") != grantTypeDeviceCode:
		_ = p.writeErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	case req.FormValue("device_code") != p.expectedDeviceCode:
		_ = p.writeErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unknown device code")
		return
	}
	if len(p.deviceTokenReplies) > 0 {
		code := p.deviceTokenReplies[0]
		p.deviceTokenReplies = p.deviceTokenReplies[1:]
		if code != "" {
			_ = p.writeErrorResponse(w, http.StatusBadRequest, code, "")
			return
		}
	}
	p.writeTokens(w)
}

// writeTokens must be called with mu held.
func (p *TestProvider) writeTokens(w http.ResponseWriter) {
	reply, err := p.issueTokens()
	if err != nil {
		p.errorf("TestProvider: unable to issue tokens: %s", err)
		_ = p.writeErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	_ = p.writeJSON(w, reply)
}

// issueTokens must be called with mu held.
func (p *TestProvider) issueTokens() (*TokenPayload, error) {
	p.issued++
	now := time.Now()
	aud := p.clientID
	if p.customAudience != "" {
		aud = p.customAudience
	}
	stdClaims := josejwt.Claims{
		Subject:  TestProviderSubject,
		Issuer:   p.Addr(),
		IssuedAt: josejwt.NewNumericDate(now),
		Expiry:   josejwt.NewNumericDate(now.Add(TestProviderExpiresIn * time.Second)),
	}
	privateClaims := map[string]interface{}{
		// a single string, not the array josejwt.Audience marshals to
		"aud":            aud,
		"email":          TestProviderEmail,
		"email_verified": true,
		"given_name":     "Alice",
		"family_name":    "Smith",
	}
	for k, v := range p.customClaims {
		privateClaims[k] = v
	}

	idTokenExpiresIn := int64(TestProviderExpiresIn)
	refreshExpiresIn := int64(30 * 24 * 3600)
	reply := &TokenPayload{
		IDTokenExpiresIn:      &idTokenExpiresIn,
		AccessToken:           "access-token-" + strconv.Itoa(p.issued),
		TokenType:             "Bearer",
		ExpiresIn:             TestProviderExpiresIn,
		RefreshToken:          p.expectedRefreshToken,
		RefreshTokenExpiresIn: &refreshExpiresIn,
	}
	if !p.omitIDToken {
		idToken, err := p.signIDToken(stdClaims, privateClaims)
		if err != nil {
			return nil, err
		}
		reply.IDToken = idToken
	}
	return reply, nil
}

// signIDToken signs with the provider's key. Unlike jwt.TestSignJWT it never
// calls FailNow, so it is safe from handler goroutines.
func (p *TestProvider) signIDToken(claims josejwt.Claims, privateClaims map[string]interface{}) (string, error) {
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: p.privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader(jose.HeaderKey("kid"), p.keyID),
	)
	if err != nil {
		return "", err
	}
	return josejwt.Signed(sig).Claims(claims).Claims(privateClaims).CompactSerialize()
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	w.WriteHeader(statusCode)
	return p.writeJSON(w, &ErrorResponse{
		Code:        errorCode,
		Description: errorMessage,
	})
}
