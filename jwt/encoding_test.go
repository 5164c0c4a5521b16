// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64URL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      []byte
		encoded string
	}{
		{name: "empty", in: []byte{}, encoded: ""},
		{name: "no-padding-needed", in: []byte("abc"), encoded: "YWJj"},
		{name: "one-pad", in: []byte("ab"), encoded: "YWI"},
		{name: "two-pad", in: []byte("a"), encoded: "YQ"},
		{name: "url-alphabet", in: []byte{0xfb, 0xff, 0xbf}, encoded: "-_-_"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got := Base64URLEncode(tt.in)
			assert.Equal(tt.encoded, got)
			decoded, ok := Base64URLDecode(got)
			require.True(ok)
			assert.Equal(tt.in, decoded)
		})
	}
}

func TestBase64URLDecode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		in     string
		want   []byte
		wantOk bool
	}{
		{name: "padded", in: "YQ==", want: []byte("a"), wantOk: true},
		{name: "unpadded", in: "YQ", want: []byte("a"), wantOk: true},
		{name: "std-alphabet", in: "+/+/", wantOk: false},
		{name: "bad-padding", in: "YQ=", wantOk: false},
		{name: "bad-char", in: "Y*Q", wantOk: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			got, ok := Base64URLDecode(tt.in)
			assert.Equal(tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(tt.want, got)
			}
		})
	}
}

func TestDecodeSegment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		seg  string
		want map[string]interface{}
	}{
		{
			name: "object",
			seg:  Base64URLEncode([]byte(`{"alg":"RS256","n":1}`)),
			want: map[string]interface{}{"alg": "RS256", "n": float64(1)},
		},
		{name: "array", seg: Base64URLEncode([]byte(`["a"]`))},
		{name: "string", seg: Base64URLEncode([]byte(`"a"`))},
		{name: "not-json", seg: Base64URLEncode([]byte(`{alg`))},
		{name: "not-base64", seg: "%%%"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeSegment(tt.seg))
		})
	}
}
