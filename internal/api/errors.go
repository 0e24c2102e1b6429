// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/hivekeeper/internal/artifact"
	"github.com/tomtom215/hivekeeper/internal/database"
	"github.com/tomtom215/hivekeeper/internal/installer"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/registry"
	"github.com/tomtom215/hivekeeper/internal/rules"
	"github.com/tomtom215/hivekeeper/internal/validation"
)

// errorMapping pairs a sentinel with the response it produces.
type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{artifact.ErrInvalidArtifact, http.StatusBadRequest, ErrCodeInvalidArtifact},
	{rules.ErrInvalidRule, http.StatusBadRequest, ErrCodeValidationFailed},

	{registry.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrDeploymentNotFound, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrProfileNotFound, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrRuleNotFound, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrServiceNotEnabled, http.StatusNotFound, ErrCodeNotFound},
	{plugin.ErrUnknownReport, http.StatusNotFound, ErrCodeNotFound},

	{registry.ErrAlreadyInstalled, http.StatusConflict, ErrCodeConflict},
	{artifact.ErrExists, http.StatusConflict, ErrCodeConflict},
	{database.ErrDuplicateRule, http.StatusConflict, ErrCodeConflict},
	{database.ErrDuplicateName, http.StatusConflict, ErrCodeConflict},
	{database.ErrProfileInUse, http.StatusConflict, ErrCodeConflict},
	{installer.ErrTaskInFlight, http.StatusConflict, ErrCodeConflict},

	{registry.ErrPending, http.StatusConflict, ErrCodePluginNotActive},
	{registry.ErrNotActive, http.StatusConflict, ErrCodePluginNotActive},
	{rules.ErrPluginInactive, http.StatusConflict, ErrCodePluginNotActive},

	{installer.ErrQueueFull, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
}

// writeError maps err onto a status and error code. Errors with no mapping
// are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	if kind, ok := plugin.KindOf(err); ok {
		rw.Error(http.StatusUnprocessableEntity, string(kind), err.Error())
		return
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		rw.ValidationError(verr.Error(), verr.Fields)
		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			rw.Error(m.status, m.code, err.Error())
			return
		}
	}
	rw.InternalError(err)
}
