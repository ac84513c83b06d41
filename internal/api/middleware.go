// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package api

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

// healthRateLimit is permissive so monitoring probes never starve while the
// limiter still caps outright abuse.
var healthRateLimit = rateLimit{requests: 1000, window: time.Minute}

type rateLimit struct {
	requests int
	window   time.Duration
}

// Middleware builds the Chi-compatible middleware stack from the server
// configuration.
type Middleware struct {
	cors  func(http.Handler) http.Handler
	limit rateLimit
}

// NewMiddleware wires CORS and rate limiting from the server section.
func NewMiddleware(cfg *config.ServerConfig) *Middleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &Middleware{
		cors:  corsHandler,
		limit: rateLimit{requests: cfg.RateLimitReqs, window: cfg.RateLimitWindow},
	}
}

// CORS returns the configured go-chi/cors handler.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the per-IP limiter for API endpoints.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return httprate.LimitByIP(m.limit.requests, m.limit.window)
}

// RateLimitHealth returns the permissive limiter for health endpoints.
func (m *Middleware) RateLimitHealth() func(http.Handler) http.Handler {
	return httprate.LimitByIP(healthRateLimit.requests, healthRateLimit.window)
}

// RequestIDWithLogging assigns each request an ID, honoring a caller-supplied
// X-Request-ID, and seeds the logging context so every handler log line can
// be traced back to its request.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APISecurityHeaders adds the standard hardening headers to every response.
// HSTS is added only when the request arrived over TLS, directly or via a
// terminating proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrometheusMetrics instruments every request with the api_requests_total
// counter and duration histogram, plus the active-request gauge. Chi's
// WrapResponseWriter preserves http.Hijacker so the websocket upgrade still
// works behind it.
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.TrackActiveRequest(true)
			defer metrics.TrackActiveRequest(false)

			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// Hijacked connections never write a status line.
				status = http.StatusOK
			}
			metrics.RecordAPIRequest(
				r.Method,
				r.URL.Path,
				strconv.Itoa(status),
				time.Since(start),
			)
		})
	}
}
