// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/hivekeeper/internal/plugin"
)

var startTime = time.Now()

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
	ServicePlugins    int    `json:"service_plugins"`
	NotifyPlugins     int    `json:"notification_plugins"`
	Uptime            string `json:"uptime"`
}

// Health reports database connectivity and plugin counts. It returns 503
// when the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:            "healthy",
		DatabaseConnected: h.store != nil && h.store.Ping(r.Context()) == nil,
		Uptime:            time.Since(startTime).Round(time.Second).String(),
	}
	if h.plugins != nil {
		status.ServicePlugins = len(h.plugins.List(plugin.FamilyService))
		status.NotifyPlugins = len(h.plugins.List(plugin.FamilyNotification))
	}

	rw := NewResponseWriter(w, r)
	if !status.DatabaseConnected {
		status.Status = "degraded"
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Data: status, Meta: rw.meta()})
		return
	}
	rw.Success(status)
}
