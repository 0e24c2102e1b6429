// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"net/http"

	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/sensorcrypto"
)

// ListDeployments lists every deployment. Key material is never included.
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListDeployments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Deployment{}
	}
	NewResponseWriter(w, r).Success(list)
}

// CreateDeployment provisions a sensor. The response is the only time the
// MAC and encryption keys leave the server.
func (h *Handler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req CreateDeploymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := h.store.GetProfile(r.Context(), req.ProfileID); err != nil {
		writeError(w, r, err)
		return
	}

	collectorType := models.CollectorType(req.CollectorType)
	if collectorType == "" {
		collectorType = models.CollectorUDP
	}

	keys, err := sensorcrypto.GenerateKeySet()
	if err != nil {
		writeError(w, r, err)
		return
	}
	d := &models.Deployment{
		Name:          req.Name,
		ProfileID:     req.ProfileID,
		InstanceKey:   keys.InstanceKey,
		MACKey:        keys.MACKey,
		EncryptionKey: keys.EncryptionKey,
		Hostname:      req.Hostname,
		Interface:     req.Interface,
		CollectorType: collectorType,
		Debug:         req.Debug,
	}
	if err := h.store.CreateDeployment(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}

	services, err := h.store.ProfileServices(r.Context(), d.ProfileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = s.Service
	}

	logging.Ctx(r.Context()).Info().Int64("deployment_id", d.ID).Str("name", d.Name).Msg("deployment provisioned")
	NewResponseWriter(w, r).Created(models.SensorConfig{
		DeploymentID:  d.ID,
		InstanceKey:   d.InstanceKey,
		MACKey:        d.MACKey,
		EncryptionKey: d.EncryptionKey,
		CollectorType: d.CollectorType,
		CollectorAddr: h.collectorAddr(d.CollectorType),
		Services:      names,
	})
}

func (h *Handler) collectorAddr(t models.CollectorType) string {
	if t == models.CollectorTCP {
		return h.collector.TCPAddr
	}
	return h.collector.UDPAddr
}

// GetDeployment returns one deployment.
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	d, err := h.store.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(d)
}

// DeleteDeployment removes a deployment with its records and self reports.
func (h *Handler) DeleteDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var tables []string
	if h.tables != nil {
		tables = h.tables.Tables()
	}
	if err := h.store.DeleteDeployment(r.Context(), id, tables); err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidateLookups()
	NewResponseWriter(w, r).NoContent()
}

// ListSelfReports returns a deployment's newest status messages.
func (h *Handler) ListSelfReports(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.store.GetDeployment(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	limit := getIntParam(r, "limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	reports, err := h.store.SelfReports(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []models.SelfReport{}
	}
	NewResponseWriter(w, r).Success(reports)
}
