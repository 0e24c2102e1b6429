// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/hivekeeper/internal/plugin"
)

func TestNewCatalog(t *testing.T) {
	t.Parallel()
	c := NewCatalog()
	if got := len(c.IDs()); got != len(factories) {
		t.Fatalf("catalog has %d ids, want %d", got, len(factories))
	}
	if err := Register(c); err == nil {
		t.Error("registering the built-ins twice succeeded")
	}
}

func TestBuiltins_LoadUnderTheirFamily(t *testing.T) {
	t.Parallel()
	loader := plugin.NewLoader(NewCatalog())

	tests := []struct {
		family plugin.Family
		name   string
		impl   string
	}{
		{plugin.FamilyService, "TelnetService", "builtin.telnet"},
		{plugin.FamilyService, "PortScanService", "builtin.portscan"},
		{plugin.FamilyNotification, "TelegramNotification", "builtin.telegram"},
		{plugin.FamilyNotification, "WebhookNotification", "builtin.webhook"},
		{plugin.FamilyNotification, "KafkaNotification", "builtin.kafka"},
		{plugin.FamilyNotification, "RedisNotification", "builtin.redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.name+".yaml")
			body := "name: " + tt.name + "\nimplementation: " + tt.impl + "\n"
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := loader.Load(tt.family, tt.name, path); err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			other := plugin.FamilyNotification
			if tt.family == plugin.FamilyNotification {
				other = plugin.FamilyService
			}
			_, err := loader.Load(other, tt.name, path)
			if kind, _ := plugin.KindOf(err); kind != plugin.CapabilityMissing {
				t.Errorf("Load() under %s error = %v, want capability_missing", other, err)
			}
		})
	}
}
