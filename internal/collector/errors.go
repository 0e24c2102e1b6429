// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package collector

import "errors"

var (
	// ErrQueueFull is returned by Submit when the pool queue has no room.
	ErrQueueFull = errors.New("collector: work queue full")

	ErrPoolNotStarted     = errors.New("collector: pool not started")
	ErrPoolStopped        = errors.New("collector: pool stopped")
	ErrPoolAlreadyStarted = errors.New("collector: pool already started")

	// ErrStopTimeout is returned when workers do not drain before the stop timeout.
	ErrStopTimeout = errors.New("collector: pool stop timed out")

	// ErrPluginPanic wraps a panic raised by a service plugin while an entry
	// was being processed.
	ErrPluginPanic = errors.New("collector: service plugin panicked")
)
