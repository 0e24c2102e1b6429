// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package main is the entry point for the Hivekeeper collector.
//
// Hivekeeper receives encrypted telemetry from honeypot sensors, hands each
// entry to the service plugin named in it, stores the resulting records in
// DuckDB, and applies the operator's severity rules to decide whether to
// keep each record and which notification plugin to alert.
//
// # Startup Order
//
//  1. Configuration: defaults, then CONFIG_PATH (YAML), then mapped env vars such as JWT_SECRET (Koanf v2)
//  2. Database: DuckDB for deployments, profiles, rules and record tables
//  3. State store: BadgerDB holding the record-schema log and plugin lifecycle state
//  4. Plugin registry: restores installed plugins and requeues pending dependency installs
//  5. Alerting: direct delivery, or a Watermill queue (gochannel, or NATS with -tags nats)
//  6. Collector: UDP and TCP/TLS listeners feeding the message processor
//  7. Admin API: chi router behind JWT auth
//
// Every long-lived component runs under the suture tree in internal/supervisor.
//
// # Tokens
//
// The admin API only verifies tokens. Issue one from the same secret with:
//
//	hivekeeper -issue-token operator -token-ttl 24h
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the tree. Listeners stop reading, queued
// datagrams drain, the HTTP server shuts down, then the stores close.
package main
