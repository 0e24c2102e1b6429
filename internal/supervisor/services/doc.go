// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package services adapts blocking servers to suture.Service so the
// supervisor tree can restart them.
//
// Components that already implement Serve(ctx) error, such as the collector
// listeners, the installer worker and the alert consumer, are added to the tree
// directly and need no wrapper.
package services
