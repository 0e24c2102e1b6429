// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds router-level settings.
type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Router wires handlers to routes.
type Router struct {
	handler *Handler
	auth    *JWTManager
	config  RouterConfig
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, auth *JWTManager, cfg RouterConfig) *Router {
	return &Router{handler: handler, auth: auth, config: cfg}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestMetrics)

	r.Get("/healthz", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(router.config.RateLimitRequests, router.config.RateLimitWindow))
		r.Use(APISecurityHeaders())
		r.Use(router.auth.Authenticate)

		r.Route("/plugins/{family}", func(r chi.Router) {
			r.Get("/", router.handler.ListPlugins)
			r.Post("/", router.handler.InstallPlugin)
			r.Get("/{name}", router.handler.GetPlugin)
			r.Put("/{name}", router.handler.UpdatePlugin)
			r.Delete("/{name}", router.handler.UninstallPlugin)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", router.handler.ListRules)
			r.Post("/", router.handler.CreateRule)
			r.Get("/{id}", router.handler.GetRule)
			r.Delete("/{id}", router.handler.DeleteRule)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", router.handler.ListProfiles)
			r.Post("/", router.handler.CreateProfile)
			r.Get("/{id}", router.handler.GetProfile)
			r.Delete("/{id}", router.handler.DeleteProfile)
			r.Put("/{id}/services/{service}", router.handler.PutProfileService)
			r.Delete("/{id}/services/{service}", router.handler.DeleteProfileService)
		})

		r.Route("/deployments", func(r chi.Router) {
			r.Get("/", router.handler.ListDeployments)
			r.Post("/", router.handler.CreateDeployment)
			r.Get("/{id}", router.handler.GetDeployment)
			r.Delete("/{id}", router.handler.DeleteDeployment)
			r.Get("/{id}/self-reports", router.handler.ListSelfReports)
		})

		r.Get("/reports/{service}/{type}", router.handler.Report)
	})

	return r
}
