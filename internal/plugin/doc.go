// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package plugin defines the capability contracts that service and
// notification plugins implement, and the loader that turns an installed
// manifest into a ready-to-instantiate Handle.
//
// Implementations are compiled into the binary and registered in a Catalog
// under an implementation id. A manifest installed through the registry
// names one of those ids and supplies its default configuration, so a
// plugin is "installed" by name without any code being discovered or
// imported at runtime.
//
// Shared behavior is composed, not inherited: services embed Reports for
// the dashboard report methods and call WithPeer to enrich events with the
// sender address; notifications embed NoInstallHooks when they declare no
// dependencies.
package plugin
