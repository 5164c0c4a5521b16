// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/myopenpass/openpass-go/sdk/id"
)

// stateLen is the length of the generated sign-in state parameter.
const stateLen = 32

// NewID generates a random, url safe string of the given length. It is
// suitable for a state parameter or PKCE code verifier.
func NewID(length int) (string, error) {
	s, err := id.New(length)
	if err != nil {
		return "", fmt.Errorf("oidc.NewID: %v: %w", err, ErrIdGeneratorFailed)
	}
	return s, nil
}

// NewState generates a sign-in state parameter.
func NewState() (string, error) {
	return NewID(stateLen)
}
