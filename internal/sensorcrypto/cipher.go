// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package sensorcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// IVSize is the length of the random prefix of every blob.
const IVSize = aes.BlockSize

var (
	// ErrDecryptionFailed is returned for any blob that cannot be decoded or deciphered.
	// The cause is deliberately not exposed.
	ErrDecryptionFailed = errors.New("sensorcrypto: decryption failed")

	// ErrInvalidKey is returned when a key is not 16, 24, or 32 bytes long.
	ErrInvalidKey = errors.New("sensorcrypto: key must be 16, 24, or 32 bytes")
)

func newCTR(key, iv []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return cipher.NewCTR(block, iv), nil
}

// Encrypt encrypts plaintext under key with a fresh random IV and returns the base64 blob.
func Encrypt(key, plaintext []byte) (string, error) {
	buf := make([]byte, IVSize+len(plaintext))
	iv := buf[:IVSize]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("sensorcrypto: read IV: %w", err)
	}
	stream, err := newCTR(key, iv)
	if err != nil {
		return "", err
	}
	stream.XORKeyStream(buf[IVSize:], plaintext)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecryptErr reverses Encrypt. Every failure is reported as ErrDecryptionFailed.
func DecryptErr(key []byte, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil || len(raw) < IVSize {
		return nil, ErrDecryptionFailed
	}
	stream, err := newCTR(key, raw[:IVSize])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	out := make([]byte, len(raw)-IVSize)
	stream.XORKeyStream(out, raw[IVSize:])
	return out, nil
}

// Decrypt reverses Encrypt. The boolean is false for malformed input; it never panics.
func Decrypt(key []byte, blob string) ([]byte, bool) {
	out, err := DecryptErr(key, blob)
	return out, err == nil
}
