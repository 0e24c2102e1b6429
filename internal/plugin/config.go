// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/validation"
)

// DecodeConfig decodes a plugin configuration map into out, a pointer to a
// struct with json tags. Fields already set in out act as defaults for keys
// cfg does not carry. Factories call it when building an instance, which
// must succeed before an operator has supplied any configuration.
func DecodeConfig(cfg map[string]any, out any) error {
	if len(cfg) > 0 {
		b, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode plugin config: %w", err)
		}
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("decode plugin config: %w", err)
		}
	}
	return nil
}

// ValidateConfig decodes cfg over a copy held in out and checks its
// validate tags. Notifications use it to vet a rule's configuration.
func ValidateConfig(cfg map[string]any, out any) error {
	if err := DecodeConfig(cfg, out); err != nil {
		return err
	}
	if err := validation.Struct(out); err != nil {
		return fmt.Errorf("plugin config: %w", err)
	}
	return nil
}
