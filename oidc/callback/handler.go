// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/myopenpass/openpass-go/oidc"
)

// ResponseFunc is used by Handler to create the http response once the
// callback was handled. err is nil when the callback url was delivered.
//
// The function should use the http.ResponseWriter to send back whatever
// content (headers, html, JSON, etc) it wishes to the browser that followed
// the redirect.
type ResponseFunc func(callbackURL string, err error, w http.ResponseWriter, req *http.Request)

// Handler creates a http.HandlerFunc for programs which relay the redirect
// through a local http server (for example from a small page registered for
// the app's redirect scheme). It rebuilds the callback url from scheme, host
// and the request's query and delivers it to s.
func Handler(s *ChannelSession, scheme, host string, fn ResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.Handler"
	switch {
	case s == nil:
		return nil, fmt.Errorf("%s: session is nil: %w", op, oidc.ErrNilParameter)
	case scheme == "":
		return nil, fmt.Errorf("%s: scheme is empty: %w", op, oidc.ErrInvalidParameter)
	case fn == nil:
		return nil, fmt.Errorf("%s: response func is nil: %w", op, oidc.ErrNilParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		u := url.URL{
			Scheme:   scheme,
			Host:     host,
			RawQuery: req.URL.RawQuery,
		}
		callbackURL := u.String()
		fn(callbackURL, s.Deliver(callbackURL), w, req)
	}, nil
}

const (
	successHTML = `<!DOCTYPE html>
<html>
<head><title>OpenPass sign in</title></head>
<body><p id="message">Signed in. You can close this window and return to the application.</p></body>
</html>
`
	failedHTML = `<!DOCTYPE html>
<html>
<head><title>OpenPass sign in</title></head>
<body><p id="message">Sign in failed. Return to the application and try again.</p></body>
</html>
`
)

// DefaultResponse writes a short html page telling the user whether they can
// return to the application.
func DefaultResponse(_ string, err error, w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(failedHTML))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(successHTML))
}
