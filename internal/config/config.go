// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package config

import "time"

// Config is the complete process configuration.
type Config struct {
	Collector  CollectorConfig  `koanf:"collector"`
	Database   DatabaseConfig   `koanf:"database"`
	Registry   RegistryConfig   `koanf:"registry"`
	Alerts     AlertsConfig     `koanf:"alerts"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// CollectorConfig configures the sensor-facing ingestion listeners.
type CollectorConfig struct {
	UDPEnabled bool   `koanf:"udp_enabled"`
	UDPAddr    string `koanf:"udp_addr"`
	TCPEnabled bool   `koanf:"tcp_enabled"`
	TCPAddr    string `koanf:"tcp_addr"`

	// TLSCertFile and TLSKeyFile enable TLS on the TCP listener when both are set.
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// Workers and QueueSize size the pool that processes UDP datagrams.
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`

	// MaxMessageBytes bounds a single envelope (datagram or TCP line).
	MaxMessageBytes int `koanf:"max_message_bytes"`

	// ReadBufferBytes is the kernel receive buffer requested for the UDP socket.
	ReadBufferBytes int `koanf:"read_buffer_bytes"`

	// IdleTimeout closes TCP connections that send nothing for this long.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// MaxConnections bounds concurrent TCP connections; extra ones are closed.
	MaxConnections int `koanf:"max_connections"`

	// LookupCacheTTL bounds how long a deployment or profile-service lookup
	// is reused across messages. Zero disables the cache.
	LookupCacheTTL time.Duration `koanf:"lookup_cache_ttl"`

	// SelfReportService is the service name sensors use for their own status reports.
	SelfReportService string `koanf:"self_report_service"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// RegistryConfig configures plugin artifacts, durable registry state, and dependency installs.
type RegistryConfig struct {
	ArtifactRoot     string        `koanf:"artifact_root"`
	StatePath        string        `koanf:"state_path"`
	InstallQueueSize int           `koanf:"install_queue_size"`
	InstallTimeout   time.Duration `koanf:"install_timeout"`
	AptCommand       []string      `koanf:"apt_command"`
	PipCommand       []string      `koanf:"pip_command"`
}

// AlertsConfig configures how notification plugins are driven.
type AlertsConfig struct {
	// Mode is "direct" (deliver inline during ingestion) or "queue" (publish to Watermill).
	Mode string `koanf:"mode"`

	// Transport is "gochannel" or "nats"; nats requires the nats build tag.
	Transport   string `koanf:"transport"`
	NATSURL     string `koanf:"nats_url"`
	Topic       string `koanf:"topic"`
	PoisonTopic string `koanf:"poison_topic"`

	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`

	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`

	RetryMax             int           `koanf:"retry_max"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	DeliveryTimeout      time.Duration `koanf:"delivery_timeout"`
}

// APIConfig configures the admin HTTP API.
type APIConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Addr              string        `koanf:"addr"`
	JWTSecret         string        `koanf:"jwt_secret"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	MaxUploadBytes    int64         `koanf:"max_upload_bytes"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig mirrors logging.Config for file/env loading.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
	// RejectBurst rejected-message warnings are written per RejectPeriod.
	RejectBurst  int           `koanf:"reject_burst"`
	RejectPeriod time.Duration `koanf:"reject_period"`
}

// SupervisorConfig mirrors supervisor.TreeConfig.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// TLSEnabled reports whether the TCP listener should terminate TLS.
func (c *CollectorConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
