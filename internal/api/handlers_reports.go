// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/hivekeeper/internal/plugin"
)

// Report runs one of a service's reports for a deployment. Query
// parameters other than "deployment" become report arguments.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	reportType := chi.URLParam(r, "type")

	q := r.URL.Query()
	depID, err := strconv.ParseInt(q.Get("deployment"), 10, 64)
	if err != nil || depID <= 0 {
		NewResponseWriter(w, r).BadRequest("deployment must be a positive integer")
		return
	}
	if _, err := h.store.GetDeployment(r.Context(), depID); err != nil {
		writeError(w, r, err)
		return
	}

	args := make(map[string]any, len(q))
	for k, v := range q {
		if k != "deployment" && len(v) > 0 {
			args[k] = v[0]
		}
	}

	var out ReportResponse
	err = h.plugins.WithService(r.Context(), service, nil, func(svc plugin.Service) error {
		data, err := svc.ReportData(r.Context(), plugin.ScopeQuerier(h.store, service), depID, reportType, args)
		if err != nil {
			return err
		}
		out = ReportResponse{
			Service:      service,
			Report:       reportType,
			DeploymentID: depID,
			Data:         data,
			Template:     svc.TemplateArgs(reportType, data),
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(out)
}
