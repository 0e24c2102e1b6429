// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"context"
	"net"
	"strconv"

	"github.com/tomtom215/hivekeeper/internal/schema"
)

// Level is one severity value a service can assign, with a label for rule editors.
type Level struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Transport is the socket type a network service listens on at the sensor.
type Transport string

const (
	TransportStream   Transport = "stream"
	TransportDatagram Transport = "datagram"
)

// Resource is a port a service occupies on the sensor.
type Resource struct {
	Transport Transport `json:"transport"`
	Port      int       `json:"port"`
}

// Service interprets one category of sensor event.
type Service interface {
	// RecordTypes lists the record types the service persists.
	RecordTypes() []schema.RecordType

	// CreateRecord builds a record from one event.
	CreateRecord(ev Event) (*Record, error)

	// Severity scores rec; rules compare against this value.
	Severity(rec *Record) int
	SeverityLevels() []Level

	// Message renders the alert text for rec at level.
	Message(rec *Record, level int) string

	// Resources lists the ports the service needs on the sensor.
	Resources() []Resource

	ReportTypes() []string
	DefaultReportArgs(reportType string) map[string]any
	ReportData(ctx context.Context, q RecordQuerier, deploymentID int64, reportType string, args map[string]any) (any, error)
	TemplateArgs(reportType string, data any) map[string]any
}

// NetworkService is a service that listens on a single sensor port.
type NetworkService interface {
	Service
	Transport() Transport
	Port() int
}

// NetworkResources is the Resources implementation for a NetworkService.
func NetworkResources(s NetworkService) []Resource {
	return []Resource{{Transport: s.Transport(), Port: s.Port()}}
}

// WithPeer copies fields and adds src_host and src_port from peer
// ("host:port"). Existing values win; an unparsable peer is ignored.
func WithPeer(fields map[string]any, peer string) map[string]any {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	if peer == "" {
		return out
	}
	host, port, err := net.SplitHostPort(peer)
	if err != nil {
		return out
	}
	if _, ok := out["src_host"]; !ok {
		out["src_host"] = host
	}
	if _, ok := out["src_port"]; !ok {
		if n, err := strconv.Atoi(port); err == nil {
			out["src_port"] = int64(n)
		}
	}
	return out
}
