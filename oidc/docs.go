// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for signing users in with OpenPass

Primary types provided by the package

* Config: the client id, redirect host and Environment of an OpenPass
application, plus the SDK and device information reported with each request.

* Client: the OpenPass API (token, device authorization, jwks and telemetry
endpoints). Token and device responses are either a success payload or an
OAuth2 ErrorResponse, decided by the body rather than the status code.

* Manager: the owner of the current TokenSet. It loads and saves tokens
through a SecureStorage, and broadcasts every change to its Subscriptions in
the order the changes were made.

* SignInFlow: the authorization code flow with PKCE. The authorize page is
presented by an AuthenticationSession, typically a browser.

* DeviceAuthorizationFlow: the device authorization grant (RFC 8628). It polls
the token endpoint, honoring authorization_pending and slow_down.

* RefreshTokenFlow: exchanges a refresh token for new tokens.

* TokenSet: the id_token, access_token and refresh_token of a completed flow.

Every flow verifies the id_token against the provider's jwks before
committing the tokens to the Manager; see the jwt package.

The oidc/callback package

The callback package includes AuthenticationSession implementations for
programs without an embedded browser.

Examples

* OpenPass CLI: examples/cli/
*/
package oidc
