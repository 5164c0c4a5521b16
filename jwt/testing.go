// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	josejwt "gopkg.in/square/go-jose.v2/jwt"
)

// TestGenerateKeys will generate a test RSA 2048 key pair.
func TestGenerateKeys(t *testing.T) (*rsa.PublicKey, *rsa.PrivateKey) {
	t.Helper()
	require := require.New(t)
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)
	return &priv.PublicKey, priv
}

// TestSignJWT will bundle the provided claims into a test RS256 signed JWT
// whose header carries keyID.
func TestSignJWT(t *testing.T, priv *rsa.PrivateKey, keyID string, claims josejwt.Claims, privateClaims interface{}) string {
	t.Helper()
	require := require.New(t)

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: priv},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader(jose.HeaderKey("kid"), keyID),
	)
	require.NoError(err)

	b := josejwt.Signed(sig).Claims(claims)
	if privateClaims != nil {
		b = b.Claims(privateClaims)
	}
	raw, err := b.CompactSerialize()
	require.NoError(err)
	return raw
}

// TestJWKS returns a key set holding pub under keyID.
func TestJWKS(t *testing.T, pub *rsa.PublicKey, keyID string) *JWKS {
	t.Helper()
	return &JWKS{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				KeyID:     keyID,
				Algorithm: RS256,
				Use:       "sig",
			},
		},
	}
}
