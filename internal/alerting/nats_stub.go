// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

//go:build !nats

package alerting

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/hivekeeper/internal/config"
)

func newNATSPubSub(_ config.AlertsConfig, _ watermill.LoggerAdapter) (*PubSub, error) {
	return nil, ErrNATSUnavailable
}
