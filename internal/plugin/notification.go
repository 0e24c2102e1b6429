// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"context"
	"time"
)

// Dependency is a set of system packages installed through one package manager.
type Dependency struct {
	Manager  string   `json:"manager" yaml:"manager" validate:"required,oneof=apt pip"`
	Packages []string `json:"packages" yaml:"packages" validate:"required,min=1,dive,required"`
}

// Installable plugins declare system dependencies and a hook that runs once
// they are installed. The plugin only becomes active after both succeed.
type Installable interface {
	Dependencies() []Dependency
	AfterInstall(ctx context.Context) error
}

// NoInstallHooks is embedded by plugins without dependencies or setup.
type NoInstallHooks struct{}

func (NoInstallHooks) Dependencies() []Dependency           { return nil }
func (NoInstallHooks) AfterInstall(_ context.Context) error { return nil }

// Message is a formatted alert handed to a notification plugin.
type Message struct {
	ID           string    `json:"id" msgpack:"id"`
	Text         string    `json:"text" msgpack:"text"`
	Service      string    `json:"service" msgpack:"service"`
	DeploymentID int64     `json:"deployment_id" msgpack:"deployment_id"`
	Level        int       `json:"level" msgpack:"level"`
	CreatedAt    time.Time `json:"created_at" msgpack:"created_at"`
}

// Notification delivers alerts to an external channel. Instances are
// created per rule with the rule's configuration merged over the manifest
// defaults.
type Notification interface {
	Installable

	// RequiresExtraConfig reports whether rules must supply configuration.
	RequiresExtraConfig() bool
	// ExtraConfigSample is shown to operators writing a rule.
	ExtraConfigSample() map[string]any
	// ValidateConfig checks a rule's notification configuration.
	ValidateConfig(cfg map[string]any) error

	Process(ctx context.Context, msg Message) error
}
