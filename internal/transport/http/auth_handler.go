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

package http

import (
	"errors"
	"net/http"

	"github.com/wheelhouse/wheelhouse/internal/identity"
	"github.com/wheelhouse/wheelhouse/internal/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Role        string         `json:"role"`
	Permissions []string       `json:"permissions"`
	Scope       identity.Scope `json:"scope"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	perms := make([]string, 0, len(s.Permissions))
	for _, p := range s.Permissions.Slice() {
		perms = append(perms, string(p))
	}
	return sessionResponse{
		ID:          s.ID,
		Email:       s.Email,
		Name:        s.Name,
		Role:        string(s.Role),
		Permissions: perms,
		Scope:       s.Scope,
	}
}

// Login authenticates the operator and opens the terminal session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wasAuthenticated := h.sessions.Current() != nil

	ok, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	outcome := "success"
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		outcome = "invalid_credentials"
	case errors.Is(err, identity.ErrAccountLocked):
		outcome = "locked"
	case errors.Is(err, session.ErrLoginSuperseded):
		outcome = "superseded"
	case err != nil:
		outcome = "error"
	}
	h.meter.LoginAttempts.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))

	switch {
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrAccountLocked):
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, session.ErrLoginSuperseded):
		respondError(w, http.StatusConflict, "a newer login attempt completed first")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "login failed, please retry")
		return
	case !ok:
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !wasAuthenticated {
		h.meter.ActiveSessions.Add(r.Context(), 1)
	}

	respondJSON(w, http.StatusOK, toSessionResponse(h.sessions.Current()))
}

// Logout closes the terminal session. Idempotent.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	wasAuthenticated := h.sessions.Current() != nil

	if err := h.sessions.Logout(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "logout failed, please retry")
		return
	}

	if wasAuthenticated {
		h.meter.ActiveSessions.Add(r.Context(), -1)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// GetSession returns the current session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Current()
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

// RefreshPermissions recomputes the session's effective permission set
// against the current catalog.
func (h *Handler) RefreshPermissions(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.RefreshPermissions(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "refresh failed, please retry")
		return
	}

	sess := h.sessions.Current()
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword lets the signed-in operator rotate their own password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Current()
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.identityService.ChangePassword(r.Context(), sess.ID, req.OldPassword, req.NewPassword)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, identity.ErrWeakPassword):
		respondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, "password change failed")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
	}
}
