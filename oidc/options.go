// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithLogger provides an optional logger for: Client, SignInFlow,
// DeviceAuthorizationFlow, RefreshTokenFlow and Manager.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *clientOptions:
			v.withLogger = l
		case *flowOptions:
			v.withLogger = l
		case *managerOptions:
			v.withLogger = l
		}
	}
}

// WithHTTPClient provides an optional http client for: Client and Manager.
// It replaces the client built from the Config's ProviderCA.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *clientOptions:
			v.withHTTPClient = c
		case *managerOptions:
			v.withHTTPClient = c
		}
	}
}

// WithClock provides an optional Clock for: SignInFlow,
// DeviceAuthorizationFlow, RefreshTokenFlow and Manager.
func WithClock(c Clock) Option {
	return func(o interface{}) {
		if c == nil {
			return
		}
		switch v := o.(type) {
		case *flowOptions:
			v.withClock = c
		case *managerOptions:
			v.withClock = c
		}
	}
}

// WithValidator provides an optional IDTokenValidator for: SignInFlow,
// DeviceAuthorizationFlow, RefreshTokenFlow and Manager.
func WithValidator(v IDTokenValidator) Option {
	return func(o interface{}) {
		if v == nil {
			return
		}
		switch opts := o.(type) {
		case *flowOptions:
			opts.withValidator = v
		case *managerOptions:
			opts.withValidator = v
		}
	}
}

// WithExpirySkew provides an optional expiry skew duration for: TokenSet
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenOptions:
			v.withExpirySkew = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is for: TokenSet
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *tokenOptions:
			v.withNowFunc = now
		}
	}
}

// WithStorage provides an optional SecureStorage for: Manager. The default
// is a MemoryStorage.
func WithStorage(s SecureStorage) Option {
	return func(o interface{}) {
		if s == nil {
			return
		}
		switch v := o.(type) {
		case *managerOptions:
			v.withStorage = s
		}
	}
}

// WithUnreliableStorage lets Manager.SignOut sign out even when the storage
// fails to delete the saved tokens. Only use it with storage that is known
// to fail spuriously, such as a credential store in a test sandbox.
func WithUnreliableStorage() Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *managerOptions:
			v.withUnreliableStorage = true
		}
	}
}
