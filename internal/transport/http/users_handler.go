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

	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/identity"
)

type userResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Role        string         `json:"role"`
	Permissions []string       `json:"permissions"`
	Scope       identity.Scope `json:"scope"`
	Active      bool           `json:"active"`
}

func toUserResponse(u *identity.User) userResponse {
	perms := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		perms = append(perms, string(p))
	}
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        string(u.Role),
		Permissions: perms,
		Scope:       u.Scope,
		Active:      u.Active,
	}
}

// ListUsers lists users visible within the caller's scope. A global
// admin sees everyone; a store admin sees their store; a procurement
// admin sees their city.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Current()
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	users, err := h.identityService.ListUsersForScope(r.Context(), sess.Scope)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Role     string         `json:"role"`
	Password string         `json:"password"`
	Scope    identity.Scope `json:"scope"`
}

// CreateUser provisions a user with a password credential. Non-global
// callers can only create users inside their own scope, whatever scope
// the request claims.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Current()
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role := authz.Role(req.Role)
	if !h.catalog.KnownRole(role) {
		respondError(w, http.StatusBadRequest, "unknown role")
		return
	}

	scope := req.Scope
	if sess.Role != authz.RoleGlobalAdmin {
		scope = sess.Scope
	}

	user, err := h.identityService.ProvisionUser(r.Context(), req.Email, req.Name, role, scope)
	switch {
	case errors.Is(err, identity.ErrInvalidEmail):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, identity.ErrUserAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if err := h.identityService.AddPassword(r.Context(), user.ID, req.Password); err != nil {
		if errors.Is(err, identity.ErrWeakPassword) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to set password")
		return
	}

	respondJSON(w, http.StatusCreated, toUserResponse(user))
}
