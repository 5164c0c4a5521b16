// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	sdkHttp "github.com/myopenpass/openpass-go/sdk/http"
)

const (
	// DefaultSDKName is reported in the SDK-Name header unless overridden.
	DefaultSDKName = "openpass-go-sdk"

	// Version of this SDK, reported in the SDK-Version header.
	Version = "1.0.0"

	redirectSchemePrefix = "com.myopenpass.auth."
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvClientID      = "OPENPASS_CLIENT_ID"
	EnvRedirectHost  = "OPENPASS_REDIRECT_HOST"
	EnvEnvironment   = "OPENPASS_ENVIRONMENT"
	EnvSDKNameSuffix = "OPENPASS_SDK_NAME_SUFFIX"
	EnvProviderCA    = "OPENPASS_PROVIDER_CA"
)

// DeviceInfo describes the host the SDK runs on. It is sent with every
// request.
type DeviceInfo struct {
	Platform        string
	PlatformVersion string
	Manufacturer    string
	Model           string
}

// DefaultDeviceInfo describes the current process using the runtime package.
func DefaultDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Platform:        runtime.GOOS,
		PlatformVersion: runtime.Version(),
		Manufacturer:    "unknown",
		Model:           runtime.GOARCH,
	}
}

// Config represents the configuration of an OpenPass client application.
type Config struct {
	// ClientID is the OpenPass application's client id.
	ClientID string

	// RedirectHost is the host portion of the sign-in redirect uri. The
	// scheme is always derived from ClientID (see RedirectScheme).
	RedirectHost string

	// Environment selects the authorization server.
	Environment Environment

	SDKName    string
	SDKVersion string
	Device     DeviceInfo

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string
}

// NewConfig composes a new, validated config.
// Supported options:
//
//	WithEnvironment
//	WithSDKNameSuffix
//	WithSDKVersion
//	WithDeviceInfo
//	WithProviderCA
func NewConfig(clientID, redirectHost string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:     clientID,
		RedirectHost: redirectHost,
		Environment:  opts.withEnvironment,
		SDKName:      DefaultSDKName + opts.withSDKNameSuffix,
		SDKVersion:   opts.withSDKVersion,
		Device:       opts.withDeviceInfo,
		ProviderCA:   opts.withProviderCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// LoadConfigFromEnv builds a Config from the OPENPASS_* variables. Values are
// read from the optional dotenv files first and then overridden by the process
// environment; the process environment itself is not modified.
func LoadConfigFromEnv(filenames ...string) (*Config, error) {
	const op = "oidc.LoadConfigFromEnv"
	fileVals := map[string]string{}
	if len(filenames) > 0 {
		var err error
		if fileVals, err = godotenv.Read(filenames...); err != nil {
			return nil, fmt.Errorf("%s: unable to read env files: %w", op, err)
		}
	}
	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileVals[key]
	}

	env, err := ParseEnvironment(get(EnvEnvironment))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewConfig(
		get(EnvClientID),
		get(EnvRedirectHost),
		WithEnvironment(env),
		WithSDKNameSuffix(get(EnvSDKNameSuffix)),
		WithProviderCA(get(EnvProviderCA)),
	)
}

// Validate the configuration. Every problem found is reported.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrMissingConfiguration))
	}
	if c.RedirectHost == "" {
		result = multierror.Append(result, fmt.Errorf("redirect host is empty: %w", ErrMissingConfiguration))
	}
	if c.SDKName == "" {
		result = multierror.Append(result, fmt.Errorf("sdk name is empty: %w", ErrInvalidParameter))
	}
	if c.SDKVersion == "" {
		result = multierror.Append(result, fmt.Errorf("sdk version is empty: %w", ErrInvalidParameter))
	}
	switch u, err := url.Parse(c.Environment.BaseURL()); {
	case c.Environment.BaseURL() == "":
		result = multierror.Append(result, fmt.Errorf("base url is empty: %w", ErrMissingConfiguration))
	case err != nil:
		result = multierror.Append(result, fmt.Errorf("base url %q is invalid: %w", c.Environment.BaseURL(), ErrInvalidParameter))
	case u.Scheme != "https" && u.Scheme != "http":
		result = multierror.Append(result, fmt.Errorf("base url %q scheme is not http or https: %w", c.Environment.BaseURL(), ErrInvalidParameter))
	}
	if c.ProviderCA != "" {
		if _, err := c.HTTPClient(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// BaseURL of the authorization server, as configured.
func (c *Config) BaseURL() string {
	return c.Environment.BaseURL()
}

// Issuer is the expected iss claim of id_tokens: the base URL without a
// trailing slash.
func (c *Config) Issuer() string {
	return strings.TrimSuffix(c.Environment.BaseURL(), "/")
}

// RedirectScheme is the custom url scheme the sign-in callback must use.
func (c *Config) RedirectScheme() string {
	return redirectSchemePrefix + c.ClientID
}

// RedirectURI is sent as redirect_uri in both the authorize and token
// requests.
func (c *Config) RedirectURI() string {
	return c.RedirectScheme() + "://" + c.RedirectHost
}

// RequestParameters returns the SDK and device identification sent with
// every request.
func (c *Config) RequestParameters() RequestParameters {
	return RequestParameters{
		SDKName:    c.SDKName,
		SDKVersion: c.SDKVersion,
		Device:     c.Device,
	}
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HTTPClient() (*http.Client, error) {
	client, err := sdkHttp.NewClient(c.ProviderCA)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("could not parse CA PEM value: %w", ErrInvalidCACert)
		}
		return nil, fmt.Errorf("could not get an http client: %w", err)
	}
	return client, nil
}

// configOptions is the set of available options
type configOptions struct {
	withEnvironment   Environment
	withSDKNameSuffix string
	withSDKVersion    string
	withDeviceInfo    DeviceInfo
	withProviderCA    string
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withEnvironment: Production,
		withSDKVersion:  Version,
		withDeviceInfo:  DefaultDeviceInfo(),
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithEnvironment provides an optional environment for the config. Production
// is used by default.
func WithEnvironment(e Environment) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withEnvironment = e
		}
	}
}

// WithSDKNameSuffix appends suffix to the reported SDK name, for SDKs that
// wrap this one.
func WithSDKNameSuffix(suffix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSDKNameSuffix = suffix
		}
	}
}

// WithSDKVersion overrides the reported SDK version.
func WithSDKVersion(v string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSDKVersion = v
		}
	}
}

// WithDeviceInfo overrides the reported device information.
func WithDeviceInfo(d DeviceInfo) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withDeviceInfo = d
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}
