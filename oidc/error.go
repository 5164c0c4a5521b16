// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"

	"github.com/myopenpass/openpass-go/jwt"
)

var (
	ErrInvalidParameter               = errors.New("invalid parameter")
	ErrNilParameter                   = errors.New("nil parameter")
	ErrInvalidCACert                  = errors.New("invalid CA certificate")
	ErrMissingConfiguration           = errors.New("missing configuration")
	ErrAuthorizationURL               = errors.New("unable to construct authorization url")
	ErrAuthorizationCancelled         = errors.New("authorization cancelled")
	ErrAuthorizationCallbackMalformed = errors.New("authorization callback malformed")
	ErrAuthorizationServer            = errors.New("authorization server error")
	ErrTokenProtocol                  = errors.New("token request failed")
	ErrTokenExpired                   = errors.New("token expired")
	ErrAuthorizationPending           = errors.New("authorization pending")
	ErrSlowDown                       = errors.New("slow down")
	ErrIDTokenVerificationFailed      = errors.New("id_token verification failed")
	ErrInvalidJWKS                    = jwt.ErrInvalidJWKS
	ErrUserCancelled                  = errors.New("user cancelled")
	ErrTransport                      = errors.New("transport failure")
	ErrDecoding                       = errors.New("unable to decode response")
	ErrNotFound                       = errors.New("not found")
	ErrStorage                        = errors.New("secure storage failure")
	ErrIdGeneratorFailed              = errors.New("id generation failed")
	ErrNotSignedIn                    = errors.New("not signed in")
	ErrClosed                         = errors.New("manager closed")
)

// OAuth2 error codes from RFC 6749 section 5.2 and RFC 8628 section 3.5 which
// get special treatment.
const (
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeExpiredToken         = "expired_token"
)

// ErrorResponse is the OAuth2 error body returned by the token and device
// authorization endpoints.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

// ProtocolError is an OAuth2 error returned in a response body. It matches
// ErrTokenProtocol with errors.Is, as well as ErrAuthorizationPending,
// ErrSlowDown or ErrTokenExpired for those codes.
type ProtocolError struct {
	Code        string
	Description string
	URI         string
}

func newProtocolError(r *ErrorResponse) *ProtocolError {
	return &ProtocolError{
		Code:        r.Code,
		Description: r.Description,
		URI:         r.URI,
	}
}

func (e *ProtocolError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrTokenProtocol, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrTokenProtocol, e.Code, e.Description)
}

// Is supports errors.Is
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrTokenProtocol:
		return true
	case ErrAuthorizationPending:
		return e.Code == ErrorCodeAuthorizationPending
	case ErrSlowDown:
		return e.Code == ErrorCodeSlowDown
	case ErrTokenExpired:
		return e.Code == ErrorCodeExpiredToken
	}
	return false
}

// AuthorizationError is an error returned by the authorization server on the
// sign-in callback (the error and error_description query parameters).
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrAuthorizationServer, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrAuthorizationServer, e.Code, e.Description)
}

// Is supports errors.Is
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAuthorizationServer
}

// TransportError is returned when an HTTP exchange with the authorization
// server could not be completed. It matches ErrTransport with errors.Is and
// unwraps to the underlying error.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrTransport, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// Is supports errors.Is
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// VerificationError is returned when a flow could not verify the id_token it
// received. Err is the cause when verification failed with an error (for
// example ErrInvalidJWKS) and nil when the token was rejected.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return ErrIDTokenVerificationFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrIDTokenVerificationFailed, e.Err)
}

// Unwrap returns the cause, if any.
func (e *VerificationError) Unwrap() error { return e.Err }

// Is supports errors.Is
func (e *VerificationError) Is(target error) bool {
	return target == ErrIDTokenVerificationFailed
}
