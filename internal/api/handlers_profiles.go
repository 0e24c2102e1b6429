// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/registry"
)

// ListProfiles lists every profile.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListProfiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Profile{}
	}
	NewResponseWriter(w, r).Success(list)
}

// CreateProfile creates an empty profile.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := &models.Profile{Name: req.Name, Description: req.Description}
	if err := h.store.CreateProfile(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(ProfileDetail{Profile: *p, Services: []models.ProfileService{}})
}

// GetProfile returns a profile with its services.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	services, err := h.store.ProfileServices(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if services == nil {
		services = []models.ProfileService{}
	}
	NewResponseWriter(w, r).Success(ProfileDetail{Profile: *p, Services: services})
}

// DeleteProfile deletes a profile that no deployment uses.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteProfile(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidateLookups()
	NewResponseWriter(w, r).NoContent()
}

// PutProfileService enables a service in a profile or replaces its config.
// The config is checked by instantiating the service with it.
func (h *Handler) PutProfileService(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	service := chi.URLParam(r, "service")
	var req ProfileServiceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := h.store.GetProfile(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if !h.plugins.IsActive(plugin.FamilyService, service) {
		writeError(w, r, fmt.Errorf("%w: %s", registry.ErrNotActive, service))
		return
	}
	err := h.plugins.WithService(r.Context(), service, req.Config, func(plugin.Service) error { return nil })
	if err != nil {
		NewResponseWriter(w, r).ValidationError(err.Error(), nil)
		return
	}

	ps := &models.ProfileService{ProfileID: id, Service: service, Config: req.Config}
	if err := h.store.AddProfileService(r.Context(), ps); err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidateLookups()
	NewResponseWriter(w, r).Success(ps)
}

// DeleteProfileService disables a service in a profile.
func (h *Handler) DeleteProfileService(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.RemoveProfileService(r.Context(), id, chi.URLParam(r, "service")); err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidateLookups()
	NewResponseWriter(w, r).NoContent()
}
