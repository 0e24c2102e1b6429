// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package database

import (
	"errors"
	"io"
	"strings"
)

var (
	ErrDeploymentNotFound = errors.New("deployment not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrProfileInUse       = errors.New("profile is assigned to deployments")
	ErrServiceNotEnabled  = errors.New("service not enabled in profile")
	ErrRuleNotFound       = errors.New("rule not found")
	// ErrDuplicateRule is returned when a rule with the same service,
	// notification, and condition exists.
	ErrDuplicateRule = errors.New("rule already exists for this service, notification, and condition")
	ErrDuplicateName = errors.New("name already in use")
)

// closeQuietly closes a resource on an error path where Close errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// isConstraintViolation reports whether err is a DuckDB primary key or unique violation.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key") ||
		strings.Contains(msg, "violates unique constraint") ||
		strings.Contains(msg, "violates primary key constraint")
}
