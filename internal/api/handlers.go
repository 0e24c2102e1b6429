// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/registry"
	"github.com/tomtom215/hivekeeper/internal/validation"
)

// PluginRegistry is the plugin lifecycle surface. *registry.Registry implements it.
type PluginRegistry interface {
	Install(ctx context.Context, family plugin.Family, src registry.Source) (*registry.InstallResult, error)
	Update(ctx context.Context, family plugin.Family, name string, src registry.Source) error
	Uninstall(ctx context.Context, family plugin.Family, name string) error
	List(family plugin.Family) []registry.Info
	Get(family plugin.Family, name string) (registry.Info, error)
	IsActive(family plugin.Family, name string) bool
	WithService(ctx context.Context, name string, cfg map[string]any, fn func(plugin.Service) error) error
}

// RuleService creates and lists rules. *rules.Manager implements it.
type RuleService interface {
	Create(ctx context.Context, r *models.Rule) error
	Get(ctx context.Context, id int64) (*models.Rule, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]models.Rule, error)
	ForService(ctx context.Context, service string) ([]models.Rule, error)
}

// Store is the relational side of the API. *database.DB implements it.
type Store interface {
	Ping(ctx context.Context) error

	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	DeleteProfile(ctx context.Context, id int64) error
	AddProfileService(ctx context.Context, ps *models.ProfileService) error
	RemoveProfileService(ctx context.Context, profileID int64, service string) error
	ProfileServices(ctx context.Context, profileID int64) ([]models.ProfileService, error)

	CreateDeployment(ctx context.Context, d *models.Deployment) error
	GetDeployment(ctx context.Context, id int64) (*models.Deployment, error)
	ListDeployments(ctx context.Context) ([]models.Deployment, error)
	DeleteDeployment(ctx context.Context, id int64, recordTables []string) error
	SelfReports(ctx context.Context, deploymentID int64, limit int) ([]models.SelfReport, error)

	plugin.RecordQuerier
}

// TableLister lists live record tables. *schema.Registry implements it.
type TableLister interface {
	Tables() []string
}

// Handler serves the admin API.
type Handler struct {
	plugins   PluginRegistry
	rules     RuleService
	store     Store
	tables    TableLister
	collector config.CollectorConfig
	lookups   Invalidator
	maxUpload int64
}

// Invalidator drops cached collector lookups after a write that could make them stale.
type Invalidator interface {
	Invalidate()
}

// HandlerDeps bundles Handler collaborators.
type HandlerDeps struct {
	Plugins   PluginRegistry
	Rules     RuleService
	Store     Store
	Tables    TableLister
	Collector config.CollectorConfig
	// Lookups is optional.
	Lookups Invalidator
	// MaxUploadBytes bounds plugin uploads.
	MaxUploadBytes int64
}

// NewHandler creates a Handler.
func NewHandler(d HandlerDeps) *Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 32 << 20
	}
	return &Handler{
		plugins:   d.Plugins,
		rules:     d.Rules,
		store:     d.Store,
		tables:    d.Tables,
		collector: d.Collector,
		lookups:   d.Lookups,
		maxUpload: d.MaxUploadBytes,
	}
}

func (h *Handler) invalidateLookups() {
	if h.lookups != nil {
		h.lookups.Invalidate()
	}
}

const maxJSONBody = 1 << 20

// decodeBody reads a JSON body into v and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		NewResponseWriter(w, r).BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if err := validation.Struct(v); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

// idParam parses a positive integer URL parameter.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		NewResponseWriter(w, r).BadRequest(name + " must be a positive integer")
		return 0, false
	}
	return id, true
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
