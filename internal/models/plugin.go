// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package models

import "time"

// PluginState is the durable lifecycle state of an installed plugin.
type PluginState string

const (
	// PluginPending plugins are installed on disk but still waiting for
	// dependency installation; they cannot be used by rules or profiles.
	PluginPending PluginState = "pending"
	PluginActive  PluginState = "active"
	// PluginFailed plugins could not be reloaded after a restart.
	PluginFailed PluginState = "failed"
)

// ServicePluginDescriptor is the metadata row written once a service plugin becomes active.
type ServicePluginDescriptor struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	RecordTypes []string  `json:"record_types"`
	InstalledAt time.Time `json:"installed_at"`
}

// NotificationPluginDescriptor is the metadata row written once a notification plugin becomes active.
type NotificationPluginDescriptor struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	InstalledAt time.Time `json:"installed_at"`
}
