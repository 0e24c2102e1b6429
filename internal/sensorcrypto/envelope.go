// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package sensorcrypto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	// ErrMalformedPayload means the blob decrypted but is not {"hmac": string, "content": value}.
	ErrMalformedPayload = errors.New("sensorcrypto: malformed payload")

	// ErrBadTag means the payload's tag does not match its content.
	ErrBadTag = errors.New("sensorcrypto: authentication tag mismatch")
)

type sealedPayload struct {
	HMAC    *string         `json:"hmac"`
	Content json.RawMessage `json:"content"`
}

// Seal signs and encrypts content the way a sensor does and returns the blob
// for the "data" field of an envelope.
func Seal(encKey, macKey []byte, content any) (string, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("sensorcrypto: marshal content: %w", err)
	}
	canon, err := CanonicalJSON(raw)
	if err != nil {
		return "", err
	}
	tag := Authenticate(macKey, canon)
	body, err := json.Marshal(sealedPayload{HMAC: &tag, Content: canon})
	if err != nil {
		return "", fmt.Errorf("sensorcrypto: marshal payload: %w", err)
	}
	return Encrypt(encKey, body)
}

// Open decrypts blob, checks the payload shape, and verifies the tag over the
// canonical form of content. It returns the content JSON only when all three succeed.
func Open(encKey, macKey []byte, blob string) (json.RawMessage, error) {
	plain, err := DecryptErr(encKey, blob)
	if err != nil {
		return nil, err
	}

	var p sealedPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, ErrMalformedPayload
	}
	if p.HMAC == nil || len(p.Content) == 0 || bytes.Equal(bytes.TrimSpace(p.Content), []byte("null")) {
		return nil, ErrMalformedPayload
	}

	canon, err := CanonicalJSON(p.Content)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	if !Verify(macKey, canon, *p.HMAC) {
		return nil, ErrBadTag
	}
	return p.Content, nil
}
