// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package sensorcrypto implements the confidentiality and authentication layer
// shared with deployed sensors.
//
// Wire format of an encrypted blob:
//
//	base64( IV[16] || AES-CTR(key, IV, plaintext) )
//
// The plaintext is a JSON object {"hmac": <hex>, "content": [...]} where the
// tag is HMAC-SHA256 over CanonicalJSON(content) keyed with the deployment's
// MAC key. CTR mode provides no integrity on its own; Open is the only
// function that tells the caller a blob is trustworthy.
//
// Keys are the ASCII key strings stored on the deployment, used as raw bytes
// (a 32-character encryption key selects AES-256).
package sensorcrypto
