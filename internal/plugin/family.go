// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import "fmt"

// Family separates the two independently tracked plugin kinds.
type Family string

const (
	FamilyService      Family = "service"
	FamilyNotification Family = "notification"
)

// Families lists every family in a stable order.
var Families = []Family{FamilyService, FamilyNotification}

// ParseFamily accepts "service" or "notification".
func ParseFamily(s string) (Family, error) {
	f := Family(s)
	if f != FamilyService && f != FamilyNotification {
		return "", fmt.Errorf("unknown plugin family %q", s)
	}
	return f, nil
}

func (f Family) String() string { return string(f) }
