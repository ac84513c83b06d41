// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/nuntius/internal/config"
)

// NewRouter assembles the HTTP tree: health, the /api group, the Prometheus
// scrape endpoint, and the websocket upgrade.
func NewRouter(cfg *config.ServerConfig, handler *Handler) chi.Router {
	m := NewMiddleware(cfg)

	r := chi.NewRouter()
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(m.CORS())
	r.Use(PrometheusMetrics())

	// Permissive limit so monitoring probes are never starved.
	r.Group(func(r chi.Router) {
		r.Use(m.RateLimitHealth())
		r.Get("/health", handler.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Group(func(r chi.Router) {
		r.Use(m.RateLimit())
		r.Use(APISecurityHeaders())

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", handler.Status)
			r.Get("/sessions", handler.Sessions)
			r.Get("/users-devices", handler.UsersDevices)
			r.Post("/users-devices/save", handler.SaveTracking)
			r.Get("/users", handler.Users)
			r.Get("/devices", handler.Devices)
			r.Get("/config", handler.Config)
			r.Get("/ws", handler.WebSocket)
		})
	})

	return r
}
