// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Base64URLEncode encodes b with the URL safe alphabet and no padding.
func Base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Base64URLDecode decodes a base64url string. Padding is optional, but when
// present it must be correct. The second return value is false when s is not
// valid base64url.
func Base64URLDecode(s string) ([]byte, bool) {
	enc := base64.RawURLEncoding
	if strings.HasSuffix(s, "=") {
		enc = base64.URLEncoding
	}
	b, err := enc.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

// DecodeSegment base64url decodes a single JWT segment and unmarshals it as a
// JSON object. It returns nil for anything that isn't a JSON object.
func DecodeSegment(seg string) map[string]interface{} {
	b, ok := Base64URLDecode(seg)
	if !ok {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil
	}
	return obj
}
