// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/hivekeeper/internal/validation"
)

// Manifest is the installable description of a plugin:
//
//	name: TelnetService
//	description: Telnet login honeypot
//	version: 1.0.0
//	implementation: builtin.telnet
//	dependencies:
//	  - manager: apt
//	    packages: [telnetd]
//	config:
//	  banner: "Ubuntu 22.04 LTS"
type Manifest struct {
	Name           string         `yaml:"name" json:"name" validate:"required,identifier"`
	Description    string         `yaml:"description" json:"description" validate:"max=512"`
	Version        string         `yaml:"version" json:"version" validate:"max=32"`
	Implementation string         `yaml:"implementation" json:"implementation" validate:"required,max=128"`
	Dependencies   []Dependency   `yaml:"dependencies" json:"dependencies,omitempty" validate:"dive"`
	Config         map[string]any `yaml:"config" json:"config,omitempty"`
}

// ParseManifest decodes and validates a YAML manifest. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validation.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}
