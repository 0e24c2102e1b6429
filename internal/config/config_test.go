// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if cfg.Collector.SelfReportService != "PiPot" {
		t.Errorf("SelfReportService = %q, want PiPot", cfg.Collector.SelfReportService)
	}
	if cfg.Collector.UDPAddr != ":1234" {
		t.Errorf("UDPAddr = %q, want :1234", cfg.Collector.UDPAddr)
	}
	if cfg.Alerts.Mode != "queue" || cfg.Alerts.Transport != "gochannel" {
		t.Errorf("alerts = %s/%s, want queue/gochannel", cfg.Alerts.Mode, cfg.Alerts.Transport)
	}
	if cfg.Registry.InstallTimeout != 15*time.Minute {
		t.Errorf("InstallTimeout = %v, want 15m", cfg.Registry.InstallTimeout)
	}
	if got := strings.Join(cfg.Registry.AptCommand, " "); got != "apt-get -q -y install" {
		t.Errorf("AptCommand = %q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with secret", func(c *Config) {}, ""},
		{"api disabled needs no secret", func(c *Config) { c.API.Enabled = false; c.API.JWTSecret = "" }, ""},
		{"short secret", func(c *Config) { c.API.JWTSecret = "short" }, "jwt_secret"},
		{"no listeners", func(c *Config) { c.Collector.UDPEnabled = false; c.Collector.TCPEnabled = false }, "at least one"},
		{"half tls", func(c *Config) { c.Collector.TLSCertFile = "cert.pem" }, "tls_cert_file"},
		{"zero workers", func(c *Config) { c.Collector.Workers = 0 }, "workers"},
		{"tiny message limit", func(c *Config) { c.Collector.MaxMessageBytes = 10 }, "max_message_bytes"},
		{"no tcp connections", func(c *Config) { c.Collector.MaxConnections = 0 }, "max_connections"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "format"},
		{"negative reject burst", func(c *Config) { c.Logging.RejectBurst = -1 }, "reject_burst"},
		{"bad alert mode", func(c *Config) { c.Alerts.Mode = "email" }, "mode"},
		{"bad transport", func(c *Config) { c.Alerts.Transport = "kafka" }, "transport"},
		{"nats without url", func(c *Config) { c.Alerts.Transport = "nats"; c.Alerts.NATSURL = "" }, "nats_url"},
		{"zero rate", func(c *Config) { c.Alerts.RatePerSecond = 0 }, "rate_per_second"},
		{"no artifact root", func(c *Config) { c.Registry.ArtifactRoot = "" }, "artifact_root"},
		{"empty pip command", func(c *Config) { c.Registry.PipCommand = nil }, "pip_command"},
		{"no db path", func(c *Config) { c.Database.Path = "" }, "database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			cfg.API.JWTSecret = testSecret
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"COLLECTOR_UDP_ADDR": "collector.udp_addr",
		"DUCKDB_PATH":        "database.path",
		"JWT_SECRET":         "api.jwt_secret",
		"LOG_LEVEL":          "logging.level",
		"HOME":               "",
		"PATH":               "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

// Load tests use t.Setenv and cannot run in parallel.

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
collector:
  udp_addr: ":9999"
  workers: 3
alerts:
  mode: direct
api:
  jwt_secret: "` + testSecret + `"
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("COLLECTOR_WORKERS", "12")
	t.Setenv("REGISTRY_PIP_COMMAND", "pip3, install, --user")
	t.Setenv("COLLECTOR_IDLE_TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Collector.UDPAddr != ":9999" {
		t.Errorf("UDPAddr = %q, want file value :9999", cfg.Collector.UDPAddr)
	}
	if cfg.Collector.Workers != 12 {
		t.Errorf("Workers = %d, want env override 12", cfg.Collector.Workers)
	}
	if cfg.Alerts.Mode != "direct" {
		t.Errorf("Alerts.Mode = %q, want direct", cfg.Alerts.Mode)
	}
	if got := strings.Join(cfg.Registry.PipCommand, " "); got != "pip3 install --user" {
		t.Errorf("PipCommand = %q", got)
	}
	if cfg.Collector.IdleTimeout != 45*time.Second {
		t.Errorf("IdleTimeout = %v, want 45s", cfg.Collector.IdleTimeout)
	}
	if cfg.Database.Path != "/data/hivekeeper.duckdb" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("ALERTS_MODE", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want validation failure")
	}
}
