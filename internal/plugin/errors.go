// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a plugin could not be loaded.
// The string values double as the admin API error codes.
type ErrorKind string

const (
	// SyntaxInvalid: the manifest does not parse or misses required fields.
	SyntaxInvalid ErrorKind = "syntax_invalid"
	// CapabilityMissing: the implementation does not satisfy the family contract.
	CapabilityMissing ErrorKind = "capability_missing"
	// ImportFailure: the implementation is unknown or failed while being constructed.
	ImportFailure ErrorKind = "import_failure"
)

// LoaderError is returned by Loader.Load and carries a human-readable reason.
type LoaderError struct {
	Kind   ErrorKind
	Plugin string
	Reason string
	Err    error
}

func (e *LoaderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s: %s: %s: %v", e.Plugin, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("plugin %s: %s: %s", e.Plugin, e.Kind, e.Reason)
}

func (e *LoaderError) Unwrap() error { return e.Err }

func newLoaderError(kind ErrorKind, plugin, reason string, err error) *LoaderError {
	return &LoaderError{Kind: kind, Plugin: plugin, Reason: reason, Err: err}
}

// KindOf returns the LoaderError kind wrapped in err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var le *LoaderError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

// ErrUnknownReport is returned for report types a service does not provide.
var ErrUnknownReport = errors.New("unknown report type")
