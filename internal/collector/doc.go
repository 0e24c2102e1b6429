// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

/*
Package collector receives encrypted sensor reports and turns them into
stored records and alerts.

A sensor sends one JSON envelope per message:

	{"instance": "<instance key>", "data": "<base64 AES-CBC blob>"}

The blob decrypts to {"hmac": "<hex>", "content": [...]} where hmac is
HMAC-SHA256 over the canonical JSON of content, keyed with the
deployment's MAC key. Each content entry names a service, an optional
"timestamp" in "2006-01-02 15:04:05" form, and the service's data.

Processing:

  - Processor authenticates an envelope and walks its entries. A message
    that fails any check is rejected whole; nothing is sent back to the
    sender.
  - Entries for the self-report service are stored as SelfReports.
  - Other entries are handed to the service plugin enabled in the
    deployment's profile and then to the rule engine.

Transports:

  - UDPListener reads one envelope per datagram and hands it to a bounded
    Pool. When the pool queue is full the datagram is dropped.
  - TCPListener reads newline-delimited envelopes, optionally over TLS,
    with one goroutine per connection.

Both listeners implement suture.Service.
*/
package collector
