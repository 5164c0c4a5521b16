// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides oidc.AuthenticationSession
implementations for programs that present the OpenPass authorize page in an
external browser: ChannelSession, which receives the callback url from
whatever handles the app's redirect scheme (see Handler), and ReaderSession,
which asks the user to paste it.
*/
package callback
