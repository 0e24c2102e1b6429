// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package metrics defines the Prometheus instruments exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CollectorMessages counts inbound envelopes by transport and result.
	// The result label never separates unknown instances from bad tags.
	CollectorMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekeeper_collector_messages_total",
			Help: "Inbound sensor messages by transport and result",
		},
		[]string{"transport", "result"}, // result: accepted, malformed, rejected, dropped
	)

	CollectorEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekeeper_collector_entries_total",
			Help: "Decrypted report entries by outcome",
		},
		[]string{"outcome"}, // stored, dropped, skipped, failed, self_report
	)

	CollectorMessageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hivekeeper_collector_message_duration_seconds",
			Help:    "Time to authenticate and dispatch one message",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// CollectorConnections counts stream connections accepted or refused
	// because the listener was at its connection limit.
	CollectorConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekeeper_collector_connections_total",
			Help: "Inbound stream connections by transport and result",
		},
		[]string{"transport", "result"}, // accepted, refused
	)

	CollectorQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hivekeeper_collector_queue_depth",
			Help: "Datagrams waiting for a worker",
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekeeper_notifications_total",
			Help: "Notification deliveries by plugin and result",
		},
		[]string{"plugin", "result"}, // sent, failed, throttled, circuit_open
	)

	PluginOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekeeper_plugin_operations_total",
			Help: "Plugin lifecycle operations",
		},
		[]string{"family", "operation", "result"},
	)

	InstallTasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hivekeeper_install_tasks_inflight",
			Help: "Dependency install tasks queued or running",
		},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekeeper_api_requests_total",
			Help: "Admin API requests",
		},
		[]string{"method", "route", "status"},
	)
)

// RecordMessage records the result and processing time of one inbound message.
func RecordMessage(transport, result string, d time.Duration) {
	CollectorMessages.WithLabelValues(transport, result).Inc()
	CollectorMessageDuration.Observe(d.Seconds())
}

// RecordConnection counts one accepted or refused stream connection.
func RecordConnection(transport string, accepted bool) {
	result := "accepted"
	if !accepted {
		result = "refused"
	}
	CollectorConnections.WithLabelValues(transport, result).Inc()
}

// RecordEntry counts one report entry outcome.
func RecordEntry(outcome string) {
	CollectorEntries.WithLabelValues(outcome).Inc()
}

// RecordNotification counts one delivery attempt.
func RecordNotification(plugin, result string) {
	Notifications.WithLabelValues(plugin, result).Inc()
}

// RecordPluginOperation counts an install/update/uninstall outcome.
func RecordPluginOperation(family, operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	PluginOperations.WithLabelValues(family, operation, result).Inc()
}
