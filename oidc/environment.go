// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net/url"
	"strings"
)

// Environment selects the OpenPass deployment the SDK talks to.
type Environment struct {
	name    string
	baseURL string
}

var (
	// Production is the default environment.
	Production = Environment{name: "production", baseURL: "https://auth.myopenpass.com/"}

	// Staging is the pre-production environment.
	Staging = Environment{name: "staging", baseURL: "https://auth.stg.myopenpass.com/"}
)

// CustomEnvironment returns an environment for an arbitrary base URL, such as a
// local test server.
func CustomEnvironment(baseURL string) Environment {
	return Environment{name: "custom", baseURL: baseURL}
}

// ParseEnvironment accepts "production", "staging" or an absolute http(s) URL.
func ParseEnvironment(s string) (Environment, error) {
	const op = "oidc.ParseEnvironment"
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", Production.name:
		return Production, nil
	case Staging.name:
		return Staging, nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return Environment{}, fmt.Errorf("%s: %q is not an environment name or http(s) url: %w", op, s, ErrInvalidParameter)
	}
	return CustomEnvironment(s), nil
}

// BaseURL of the environment's authorization server.
func (e Environment) BaseURL() string { return e.baseURL }

// String returns the environment name.
func (e Environment) String() string { return e.name }
