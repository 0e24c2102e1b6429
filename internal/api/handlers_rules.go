// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"net/http"

	"github.com/tomtom215/hivekeeper/internal/models"
)

// ListRules lists every rule, or one service's rules in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	var (
		list []models.Rule
		err  error
	)
	if service := r.URL.Query().Get("service"); service != "" {
		list, err = h.rules.ForService(r.Context(), service)
	} else {
		list, err = h.rules.List(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Rule{}
	}
	NewResponseWriter(w, r).Success(list)
}

// CreateRule validates a rule against the installed plugins and stores it.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rule := req.rule()
	if err := h.rules.Create(r.Context(), rule); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(rule)
}

// GetRule returns one rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rule, err := h.rules.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(rule)
}

// DeleteRule removes one rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.rules.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}
