// Copyright 2026 The Wheelhouse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http exposes the CRM terminal's local API. The process holds a
// single logical session (the signed-in operator); every protected route
// passes through the guard against that session.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/guard"
	"github.com/wheelhouse/wheelhouse/internal/identity"
	"github.com/wheelhouse/wheelhouse/internal/observability/metrics"
	"github.com/wheelhouse/wheelhouse/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	sessions        *session.Store
	identityService *identity.Service
	guard           *guard.Guard
	catalog         *authz.Catalog
	meter           *metrics.Meter
}

// NewHandler creates a new HTTP handler
func NewHandler(
	sessions *session.Store,
	identityService *identity.Service,
	g *guard.Guard,
	catalog *authz.Catalog,
	meter *metrics.Meter,
) *Handler {
	return &Handler{
		sessions:        sessions,
		identityService: identityService,
		guard:           g,
		catalog:         catalog,
		meter:           meter,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/auth/session", h.GetSession)
			r.Post("/auth/refresh", h.RefreshPermissions)
			r.Post("/user/change-password", h.ChangePassword)

			r.Route("/users", func(r chi.Router) {
				r.Use(h.RequirePermission(authz.PermManageStoreUsers))
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
			})
		})
	})

	return r
}

// HealthCheck reports liveness and the session lifecycle state.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"session_state": h.sessions.State().String(),
	})
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError writes a JSON error response. Messages stay neutral:
// denials never explain themselves in terms of other users' data.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
