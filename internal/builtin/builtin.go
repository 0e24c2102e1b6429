// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package builtin wires the compiled-in plugin implementations into a
// catalog. Manifests refer to them by id, e.g. "implementation: builtin.telnet".
package builtin

import (
	"github.com/tomtom215/hivekeeper/internal/builtin/notifications"
	"github.com/tomtom215/hivekeeper/internal/builtin/services"
	"github.com/tomtom215/hivekeeper/internal/plugin"
)

var factories = []struct {
	id string
	f  plugin.Factory
}{
	{services.TelnetID, services.NewTelnet},
	{services.PortScanID, services.NewPortScan},
	{notifications.TelegramID, notifications.NewTelegram},
	{notifications.WebhookID, notifications.NewWebhook},
	{notifications.KafkaID, notifications.NewKafka},
	{notifications.RedisID, notifications.NewRedis},
}

// Register adds every built-in implementation to c.
func Register(c *plugin.Catalog) error {
	for _, e := range factories {
		if err := c.Register(e.id, e.f); err != nil {
			return err
		}
	}
	return nil
}

// NewCatalog returns a catalog holding the built-in implementations.
func NewCatalog() *plugin.Catalog {
	c := plugin.NewCatalog()
	for _, e := range factories {
		c.MustRegister(e.id, e.f)
	}
	return c
}
