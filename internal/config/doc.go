// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package config loads Hivekeeper configuration with koanf.
//
// Sources are layered lowest to highest priority:
//
//  1. Built-in defaults (defaultConfig)
//  2. A YAML file: $CONFIG_PATH, ./config.yaml, or /etc/hivekeeper/config.yaml
//  3. Environment variables (COLLECTOR_UDP_ADDR, DUCKDB_PATH, LOG_LEVEL, ...)
//
// Sections:
//   - Collector: UDP/TCP listeners, worker pool, message size limits
//   - Database: DuckDB file and resource limits
//   - Registry: plugin artifact root, Badger state directory, package manager commands
//   - Alerts: notification dispatch mode, Watermill transport, throttling and breaker thresholds
//   - API: admin HTTP listener and JWT secret
//   - Logging, Supervisor
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("invalid configuration")
//	}
package config
