// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks cross-field constraints that koanf cannot express.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateCollector,
		c.validateDatabase,
		c.validateRegistry,
		c.validateAlerts,
		c.validateAPI,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateCollector() error {
	col := &c.Collector
	if !col.UDPEnabled && !col.TCPEnabled {
		return errors.New("collector: at least one of udp_enabled or tcp_enabled must be true")
	}
	if col.UDPEnabled && col.UDPAddr == "" {
		return errors.New("collector: udp_addr is required when UDP is enabled")
	}
	if col.TCPEnabled && col.TCPAddr == "" {
		return errors.New("collector: tcp_addr is required when TCP is enabled")
	}
	if (col.TLSCertFile == "") != (col.TLSKeyFile == "") {
		return errors.New("collector: tls_cert_file and tls_key_file must be set together")
	}
	if col.Workers < 1 {
		return fmt.Errorf("collector: workers must be at least 1, got %d", col.Workers)
	}
	if col.TCPEnabled && col.MaxConnections < 1 {
		return fmt.Errorf("collector: max_connections must be at least 1, got %d", col.MaxConnections)
	}
	if col.LookupCacheTTL < 0 {
		return fmt.Errorf("collector: lookup_cache_ttl must not be negative")
	}
	if col.QueueSize < 1 {
		return fmt.Errorf("collector: queue_size must be at least 1, got %d", col.QueueSize)
	}
	if col.MaxMessageBytes < 1024 || col.MaxMessageBytes > 1<<20 {
		return fmt.Errorf("collector: max_message_bytes must be between 1KiB and 1MiB, got %d", col.MaxMessageBytes)
	}
	if col.SelfReportService == "" {
		return errors.New("collector: self_report_service must not be empty")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return errors.New("database: path is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database: threads must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateRegistry() error {
	r := &c.Registry
	if r.ArtifactRoot == "" {
		return errors.New("registry: artifact_root is required")
	}
	if r.StatePath == "" {
		return errors.New("registry: state_path is required")
	}
	if r.InstallQueueSize < 1 {
		return fmt.Errorf("registry: install_queue_size must be at least 1, got %d", r.InstallQueueSize)
	}
	if len(r.AptCommand) == 0 || len(r.PipCommand) == 0 {
		return errors.New("registry: apt_command and pip_command must not be empty")
	}
	return nil
}

func (c *Config) validateAlerts() error {
	a := &c.Alerts
	switch a.Mode {
	case "direct", "queue":
	default:
		return fmt.Errorf("alerts: mode must be direct or queue, got %q", a.Mode)
	}
	switch a.Transport {
	case "gochannel":
	case "nats":
		if a.NATSURL == "" {
			return errors.New("alerts: nats_url is required for the nats transport")
		}
	default:
		return fmt.Errorf("alerts: transport must be gochannel or nats, got %q", a.Transport)
	}
	if a.Mode == "queue" && a.Topic == "" {
		return errors.New("alerts: topic is required in queue mode")
	}
	if a.RatePerSecond <= 0 || a.Burst < 1 {
		return fmt.Errorf("alerts: rate_per_second must be > 0 and burst >= 1, got %v/%d", a.RatePerSecond, a.Burst)
	}
	if a.BreakerFailures == 0 {
		return errors.New("alerts: breaker_failures must be at least 1")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if c.API.Addr == "" {
		return errors.New("api: addr is required when the API is enabled")
	}
	if len(c.API.JWTSecret) < 32 {
		return errors.New("api: jwt_secret must be at least 32 characters when the API is enabled")
	}
	if c.API.MaxUploadBytes < 1 {
		return errors.New("api: max_upload_bytes must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	l := &c.Logging
	switch strings.ToLower(l.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging: format must be json or console, got %q", l.Format)
	}
	if l.RejectBurst < 0 || l.RejectPeriod < 0 {
		return errors.New("logging: reject_burst and reject_period must not be negative")
	}
	return nil
}
