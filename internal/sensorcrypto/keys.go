// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package sensorcrypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Key lengths generated at provisioning time.
const (
	InstanceKeyLength   = 20
	MACKeyLength        = 32
	EncryptionKeyLength = 32
)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateKey returns n random alphanumeric characters from crypto/rand.
func GenerateKey(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("sensorcrypto: invalid key length %d", n)
	}
	limit := big.NewInt(int64(len(keyAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("sensorcrypto: generate key: %w", err)
		}
		out[i] = keyAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// KeySet is the key material of one deployment.
type KeySet struct {
	InstanceKey   string
	MACKey        string
	EncryptionKey string
}

// GenerateKeySet creates fresh key material for a new deployment.
func GenerateKeySet() (KeySet, error) {
	var ks KeySet
	var err error
	if ks.InstanceKey, err = GenerateKey(InstanceKeyLength); err != nil {
		return KeySet{}, err
	}
	if ks.MACKey, err = GenerateKey(MACKeyLength); err != nil {
		return KeySet{}, err
	}
	if ks.EncryptionKey, err = GenerateKey(EncryptionKeyLength); err != nil {
		return KeySet{}, err
	}
	return ks, nil
}
