// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidLength is returned when a non-positive length is requested.
var ErrInvalidLength = errors.New("invalid length")

// New generates a random string of exactly length characters drawn from the
// base64url alphabet, using crypto/rand.
func New(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("unable to generate id of length %d: %w", length, ErrInvalidLength)
	}
	// every 3 bytes encode to 4 characters
	b := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
