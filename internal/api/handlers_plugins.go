// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/registry"
)

// InstallResponse is returned by plugin installs.
type InstallResponse struct {
	Name   string             `json:"name"`
	Family plugin.Family      `json:"family"`
	Status models.PluginState `json:"status"`
	TaskID string             `json:"task_id,omitempty"`
}

func familyParam(w http.ResponseWriter, r *http.Request) (plugin.Family, bool) {
	family, err := plugin.ParseFamily(chi.URLParam(r, "family"))
	if err != nil {
		NewResponseWriter(w, r).NotFound(err.Error())
		return "", false
	}
	return family, true
}

// uploadSource reads the multipart "file" field. The caller must close the
// returned multipart form.
func (h *Handler) uploadSource(w http.ResponseWriter, r *http.Request) (registry.Source, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
		} else {
			NewResponseWriter(w, r).BadRequest("expected a multipart form with a file field")
		}
		return registry.Source{}, nil, false
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("file")
	if err != nil {
		cleanup()
		NewResponseWriter(w, r).BadRequest("file field is required")
		return registry.Source{}, nil, false
	}
	return registry.Source{Filename: header.Filename, Reader: file}, func() {
		_ = file.Close()
		cleanup()
	}, true
}

// ListPlugins lists one family.
func (h *Handler) ListPlugins(w http.ResponseWriter, r *http.Request) {
	family, ok := familyParam(w, r)
	if !ok {
		return
	}
	NewResponseWriter(w, r).Success(h.plugins.List(family))
}

// GetPlugin describes one plugin.
func (h *Handler) GetPlugin(w http.ResponseWriter, r *http.Request) {
	family, ok := familyParam(w, r)
	if !ok {
		return
	}
	info, err := h.plugins.Get(family, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(info)
}

// InstallPlugin installs an uploaded artifact. Plugins with package
// dependencies answer 202 with the install task id.
func (h *Handler) InstallPlugin(w http.ResponseWriter, r *http.Request) {
	family, ok := familyParam(w, r)
	if !ok {
		return
	}
	src, done, ok := h.uploadSource(w, r)
	if !ok {
		return
	}
	defer done()

	res, err := h.plugins.Install(r.Context(), family, src)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("family", string(family)).Str("file", src.Filename).Msg("plugin install rejected")
		writeError(w, r, err)
		return
	}

	out := InstallResponse{Name: res.Name, Family: res.Family, Status: res.Status}
	rw := NewResponseWriter(w, r)
	if res.Task != nil {
		out.TaskID = res.Task.ID
		rw.Accepted(out)
		return
	}
	rw.Created(out)
}

// UpdatePlugin replaces an installed plugin's artifact.
func (h *Handler) UpdatePlugin(w http.ResponseWriter, r *http.Request) {
	family, ok := familyParam(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	src, done, ok := h.uploadSource(w, r)
	if !ok {
		return
	}
	defer done()

	if err := h.plugins.Update(r.Context(), family, name, src); err != nil {
		writeError(w, r, err)
		return
	}
	info, err := h.plugins.Get(family, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(info)
}

// UninstallPlugin removes a plugin and everything that references it.
func (h *Handler) UninstallPlugin(w http.ResponseWriter, r *http.Request) {
	family, ok := familyParam(w, r)
	if !ok {
		return
	}
	if err := h.plugins.Uninstall(r.Context(), family, chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidateLookups()
	NewResponseWriter(w, r).NoContent()
}
