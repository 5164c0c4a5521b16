// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	josejwt "gopkg.in/square/go-jose.v2/jwt"
)

const (
	testKeyID    = "test-kid"
	testIssuer   = "https://auth.myopenpass.com"
	testClientID = "test-client"
)

func TestNewValidator(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		issuer    string
		clientID  string
		wantIsErr error
	}{
		{name: "valid", issuer: testIssuer, clientID: testClientID},
		{name: "missing-issuer", clientID: testClientID, wantIsErr: ErrInvalidParameter},
		{name: "missing-client-id", issuer: testIssuer, wantIsErr: ErrInvalidParameter},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			v, err := NewValidator(tt.issuer, tt.clientID)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Nil(v)
				return
			}
			require.NoError(err)
			assert.NotNil(v)
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pub, priv := TestGenerateKeys(t)
	_, otherPriv := TestGenerateKeys(t)
	keys := TestJWKS(t, pub, testKeyID)

	now := time.Unix(1700000000, 0)
	v, err := NewValidator(testIssuer, testClientID, WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	// aud goes in the private claims so it is serialized as a string.
	claims := func() josejwt.Claims {
		return josejwt.Claims{
			Issuer:   testIssuer,
			Subject:  "alice",
			Expiry:   josejwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt: josejwt.NewNumericDate(now),
		}
	}
	signWith := func(t *testing.T, key *rsa.PrivateKey, kid string, c josejwt.Claims, aud interface{}) *IDToken {
		t.Helper()
		tk := ParseIDToken(TestSignJWT(t, key, kid, c, map[string]interface{}{
			"aud":   aud,
			"email": "alice@example.com",
		}))
		require.NotNil(t, tk)
		return tk
	}
	sign := func(t *testing.T, c josejwt.Claims) *IDToken {
		t.Helper()
		return signWith(t, priv, testKeyID, c, testClientID)
	}
	// tamper re-encodes one segment of a valid token, keeping the others.
	tamper := func(t *testing.T, f func(parts []string)) *IDToken {
		t.Helper()
		parts := strings.Split(sign(t, claims()).Raw, ".")
		f(parts)
		tk := ParseIDToken(strings.Join(parts, "."))
		require.NotNil(t, tk)
		return tk
	}

	tests := []struct {
		name      string
		token     func(t *testing.T) *IDToken
		keys      *JWKS
		want      bool
		wantIsErr error
	}{
		{
			name:  "valid",
			token: func(t *testing.T) *IDToken { return sign(t, claims()) },
			keys:  keys,
			want:  true,
		},
		{
			name: "valid-audience-array",
			token: func(t *testing.T) *IDToken {
				return signWith(t, priv, testKeyID, claims(), []string{testClientID})
			},
			keys: keys,
			want: true,
		},
		{
			name: "wrong-issuer",
			token: func(t *testing.T) *IDToken {
				c := claims()
				c.Issuer = "https://evil.example.com"
				return sign(t, c)
			},
			keys: keys,
		},
		{
			name: "wrong-audience",
			token: func(t *testing.T) *IDToken {
				return signWith(t, priv, testKeyID, claims(), "other-client")
			},
			keys: keys,
		},
		{
			name: "expired",
			token: func(t *testing.T) *IDToken {
				c := claims()
				c.Expiry = josejwt.NewNumericDate(now.Add(-time.Second))
				return sign(t, c)
			},
			keys: keys,
		},
		{
			name: "expires-now",
			token: func(t *testing.T) *IDToken {
				c := claims()
				c.Expiry = josejwt.NewNumericDate(now)
				return sign(t, c)
			},
			keys: keys,
		},
		{
			name: "expires-next-second",
			token: func(t *testing.T) *IDToken {
				c := claims()
				c.Expiry = josejwt.NewNumericDate(now.Add(time.Second))
				return sign(t, c)
			},
			keys: keys,
			want: true,
		},
		{
			name: "signed-by-other-key",
			token: func(t *testing.T) *IDToken {
				return signWith(t, otherPriv, testKeyID, claims(), testClientID)
			},
			keys: keys,
		},
		{
			name: "tampered-payload",
			token: func(t *testing.T) *IDToken {
				return tamper(t, func(parts []string) {
					payload := DecodeSegment(parts[1])
					payload["sub"] = "mallory"
					b, err := json.Marshal(payload)
					require.NoError(t, err)
					parts[1] = Base64URLEncode(b)
				})
			},
			keys: keys,
		},
		{
			name: "tampered-signature",
			token: func(t *testing.T) *IDToken {
				return tamper(t, func(parts []string) {
					sig, ok := Base64URLDecode(parts[2])
					require.True(t, ok)
					sig[0] ^= 0xff
					parts[2] = Base64URLEncode(sig)
				})
			},
			keys: keys,
		},
		{
			name: "non-rs256-header",
			token: func(t *testing.T) *IDToken {
				return tamper(t, func(parts []string) {
					header := DecodeSegment(parts[0])
					header["alg"] = "RS384"
					b, err := json.Marshal(header)
					require.NoError(t, err)
					parts[0] = Base64URLEncode(b)
				})
			},
			keys: keys,
		},
		{
			name: "unknown-kid",
			token: func(t *testing.T) *IDToken {
				return signWith(t, priv, "other-kid", claims(), testClientID)
			},
			keys:      keys,
			wantIsErr: ErrInvalidJWKS,
		},
		{
			name:      "empty-jwks",
			token:     func(t *testing.T) *IDToken { return sign(t, claims()) },
			keys:      &JWKS{},
			wantIsErr: ErrInvalidJWKS,
		},
		{
			name:  "non-rsa-key",
			token: func(t *testing.T) *IDToken { return sign(t, claims()) },
			keys: &JWKS{Keys: []jose.JSONWebKey{
				{Key: []byte("secret"), KeyID: testKeyID, Algorithm: "HS256"},
			}},
			wantIsErr: ErrInvalidJWKS,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := v.Validate(ctx, tt.token(t), tt.keys)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.False(got)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestValidator_Validate_NilToken(t *testing.T) {
	t.Parallel()
	v, err := NewValidator(testIssuer, testClientID)
	require.NoError(t, err)
	ok, err := v.Validate(context.Background(), nil, &JWKS{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestJWKS_JSON(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	pub, _ := TestGenerateKeys(t)
	b, err := json.Marshal(TestJWKS(t, pub, testKeyID))
	require.NoError(err)

	var got JWKS
	require.NoError(json.Unmarshal(b, &got))
	k, ok := got.Key(testKeyID)
	require.True(ok)
	assert.True(pub.Equal(k.Key))

	_, ok = got.Key("missing")
	assert.False(ok)

	var nilSet *JWKS
	_, ok = nilSet.Key(testKeyID)
	assert.False(ok)
}
