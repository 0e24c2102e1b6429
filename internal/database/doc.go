// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package database is the DuckDB persistence layer.
//
// # Tables
//
// Fixed tables hold deployments, profiles and their enabled services,
// installed plugin descriptors, rules, and sensor self reports. Record
// tables (rec_<plugin>__<type>) are created and dropped at runtime by the
// schema registry through the DDL methods in records.go; this package
// never decides on its own which record tables exist.
//
// # Transactions
//
// Every record is stored in its own transaction so one failed insert never
// affects the rest of a batch. Deleting a deployment or a plugin removes
// the rows that reference it in the same transaction, since DuckDB does not
// cascade foreign keys.
//
// # Files
//
//   - database.go: connection lifecycle and pool configuration
//   - migrations.go: fixed table creation and version tracking
//   - deployments.go, profiles.go, rules.go, plugins.go: entity CRUD
//   - records.go: record storage, report queries, and record-table DDL
package database
