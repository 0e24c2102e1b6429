// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package sensorcrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Authenticate returns the lowercase hex HMAC-SHA256 of canonical under key.
func Authenticate(key, canonical []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the tag over canonical and compares it in constant time.
// The tag may be hex (what sensors send) or standard base64.
func Verify(key, canonical []byte, tag string) bool {
	got, ok := decodeTag(tag)
	mac := hmac.New(sha256.New, key)
	mac.Write(canonical)
	want := mac.Sum(nil)
	// The comparison runs even for undecodable tags so both paths cost the same.
	return hmac.Equal(want, got) && ok
}

func decodeTag(tag string) ([]byte, bool) {
	if len(tag) == 2*sha256.Size {
		if b, err := hex.DecodeString(strings.ToLower(tag)); err == nil {
			return b, true
		}
	}
	if b, err := base64.StdEncoding.DecodeString(tag); err == nil && len(b) == sha256.Size {
		return b, true
	}
	return make([]byte, sha256.Size), false
}
