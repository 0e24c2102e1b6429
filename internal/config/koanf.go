// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/hivekeeper/config.yaml",
	"/etc/hivekeeper/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Collector: CollectorConfig{
			UDPEnabled:        true,
			UDPAddr:           ":1234",
			TCPEnabled:        true,
			TCPAddr:           ":1235",
			Workers:           8,
			QueueSize:         1024,
			MaxMessageBytes:   64 * 1024,
			ReadBufferBytes:   2 * 1024 * 1024,
			IdleTimeout:       2 * time.Minute,
			MaxConnections:    256,
			LookupCacheTTL:    30 * time.Second,
			SelfReportService: "PiPot",
		},
		Database: DatabaseConfig{
			Path:      "/data/hivekeeper.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Registry: RegistryConfig{
			ArtifactRoot:     "/data/plugins",
			StatePath:        "/data/registry",
			InstallQueueSize: 16,
			InstallTimeout:   15 * time.Minute,
			AptCommand:       []string{"apt-get", "-q", "-y", "install"},
			PipCommand:       []string{"pip", "install"},
		},
		Alerts: AlertsConfig{
			Mode:                 "queue",
			Transport:            "gochannel",
			NATSURL:              "nats://127.0.0.1:4222",
			Topic:                "hivekeeper.alerts",
			PoisonTopic:          "hivekeeper.alerts.poison",
			RatePerSecond:        1,
			Burst:                5,
			BreakerFailures:      5,
			BreakerTimeout:       time.Minute,
			RetryMax:             3,
			RetryInitialInterval: 500 * time.Millisecond,
			DeliveryTimeout:      10 * time.Second,
		},
		API: APIConfig{
			Enabled:           true,
			Addr:              "127.0.0.1:8080",
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			MaxUploadBytes:    10 << 20,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "json",
			RejectBurst:  20,
			RejectPeriod: 10 * time.Second,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load reads defaults, the optional config file, and environment variables, then validates.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths hold lists that may arrive from env as comma-separated strings.
var sliceConfigPaths = []string{
	"registry.apt_command",
	"registry.pip_command",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
// Unlisted variables are ignored so the process environment cannot inject arbitrary keys.
var envMappings = map[string]string{
	"collector_udp_enabled":         "collector.udp_enabled",
	"collector_udp_addr":            "collector.udp_addr",
	"collector_tcp_enabled":         "collector.tcp_enabled",
	"collector_tcp_addr":            "collector.tcp_addr",
	"collector_tls_cert_file":       "collector.tls_cert_file",
	"collector_tls_key_file":        "collector.tls_key_file",
	"collector_lookup_cache_ttl":    "collector.lookup_cache_ttl",
	"collector_workers":             "collector.workers",
	"collector_queue_size":          "collector.queue_size",
	"collector_max_message_bytes":   "collector.max_message_bytes",
	"collector_read_buffer_bytes":   "collector.read_buffer_bytes",
	"collector_idle_timeout":        "collector.idle_timeout",
	"collector_max_connections":     "collector.max_connections",
	"collector_self_report_service": "collector.self_report_service",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"plugin_artifact_root":       "registry.artifact_root",
	"registry_state_path":        "registry.state_path",
	"registry_install_queue":     "registry.install_queue_size",
	"registry_install_timeout":   "registry.install_timeout",
	"registry_apt_command":       "registry.apt_command",
	"registry_pip_command":       "registry.pip_command",
	"alerts_mode":                "alerts.mode",
	"alerts_transport":           "alerts.transport",
	"alerts_nats_url":            "alerts.nats_url",
	"alerts_topic":               "alerts.topic",
	"alerts_poison_topic":        "alerts.poison_topic",
	"alerts_rate_per_second":     "alerts.rate_per_second",
	"alerts_burst":               "alerts.burst",
	"alerts_breaker_failures":    "alerts.breaker_failures",
	"alerts_breaker_timeout":     "alerts.breaker_timeout",
	"alerts_retry_max":           "alerts.retry_max",
	"alerts_retry_interval":      "alerts.retry_initial_interval",
	"alerts_delivery_timeout":    "alerts.delivery_timeout",
	"api_enabled":                "api.enabled",
	"api_addr":                   "api.addr",
	"jwt_secret":                 "api.jwt_secret",
	"api_rate_limit_requests":    "api.rate_limit_requests",
	"api_rate_limit_window":      "api.rate_limit_window",
	"api_max_upload_bytes":       "api.max_upload_bytes",
	"api_shutdown_timeout":       "api.shutdown_timeout",
	"log_level":                  "logging.level",
	"log_format":                 "logging.format",
	"log_caller":                 "logging.caller",
	"log_reject_burst":           "logging.reject_burst",
	"log_reject_period":          "logging.reject_period",
	"supervisor_failure_backoff": "supervisor.failure_backoff",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
