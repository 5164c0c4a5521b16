// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// openpass is a client SDK for signing users in with OpenPass, an OpenID
// Connect provider. It supports the authorization code flow with PKCE, the
// device authorization flow and refreshing tokens, verifies every id_token it
// receives, and keeps the signed in user's tokens in a Manager that notifies
// subscribers of every change.
//
// See the oidc package.
package openpass
