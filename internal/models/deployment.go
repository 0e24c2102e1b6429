// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package models

import "time"

// CollectorType is the transport a sensor uses to reach the collector.
type CollectorType string

const (
	CollectorUDP CollectorType = "udp"
	CollectorTCP CollectorType = "tcp"
)

// Deployment is one provisioned sensor. Key material is generated once and never changes.
type Deployment struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name" validate:"required,max=64"`
	ProfileID     int64         `json:"profile_id" validate:"required,gt=0"`
	InstanceKey   string        `json:"instance_key"`
	MACKey        string        `json:"-"`
	EncryptionKey string        `json:"-"`
	Hostname      string        `json:"hostname,omitempty" validate:"omitempty,hostname"`
	Interface     string        `json:"interface,omitempty"`
	CollectorType CollectorType `json:"collector_type" validate:"oneof=udp tcp"`
	Debug         bool          `json:"debug"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SensorConfig is handed to the operator once at provisioning time so the
// sensor image can be configured. It is the only place the secrets leave the server.
type SensorConfig struct {
	DeploymentID  int64         `json:"deployment_id"`
	InstanceKey   string        `json:"instance_key"`
	MACKey        string        `json:"mac_key"`
	EncryptionKey string        `json:"encryption_key"`
	CollectorType CollectorType `json:"collector_type"`
	CollectorAddr string        `json:"collector_addr"`
	Services      []string      `json:"services"`
}

// Profile is a named, ordered set of enabled service plugins.
type Profile struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name" validate:"required,max=64"`
	Description string    `json:"description" validate:"max=512"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileService enables one service plugin in a profile with its configuration.
type ProfileService struct {
	ProfileID int64          `json:"profile_id"`
	Service   string         `json:"service" validate:"required,identifier"`
	Position  int            `json:"position"`
	Config    map[string]any `json:"config,omitempty"`
}

// SelfReport is a status message a sensor sends about itself rather than about an attacker.
type SelfReport struct {
	ID           string    `json:"id"`
	DeploymentID int64     `json:"deployment_id"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}
