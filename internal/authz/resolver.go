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

package authz

import "log/slog"

// Subject is the authorization-relevant projection of a session: the
// role and the effective permission set. A nil Subject means "not
// authenticated" and is denied everything.
type Subject struct {
	Role        Role
	Permissions PermissionSet
}

// Resolver decides whether a subject holds a requested permission.
// Decisions are pure in-memory queries with no side effects; denial is a
// normal outcome, never an error.
type Resolver struct {
	catalog *Catalog
}

// NewResolver creates a resolver backed by the given catalog.
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// IsAuthorized applies the resolution chain, short-circuiting:
//  1. no subject → deny
//  2. effective set contains the wildcard → allow
//  3. effective set contains the permission verbatim → allow
//  4. role defaults contain the permission → allow (explicit per-user
//     grant lists may be stale relative to the canonical table; role
//     defaults are never silently lost)
//  5. global_admin → allow, even if the permission list is corrupted
//  6. deny
func (r *Resolver) IsAuthorized(sub *Subject, requested Permission) bool {
	if sub == nil {
		return false
	}

	if sub.Permissions.Contains(PermAll) {
		return true
	}
	if sub.Permissions.Contains(requested) {
		return true
	}

	defaults, err := r.catalog.PermissionsForRole(sub.Role)
	if err != nil {
		// Unknown role is a programming error, not a crash: deny and
		// leave a trail for diagnosis.
		slog.Debug("authorization check against unknown role",
			slog.String("role", string(sub.Role)),
			slog.String("permission", string(requested)),
		)
	} else if defaults.Contains(requested) {
		return true
	}

	if sub.Role == RoleGlobalAdmin {
		return true
	}

	if !r.catalog.Known(requested) {
		slog.Debug("authorization check for unknown permission",
			slog.String("permission", string(requested)),
		)
	}

	return false
}

// HasRole reports whether the subject's role is one of the given roles.
// Exact role gating only; no permission semantics.
func HasRole(sub *Subject, roles ...Role) bool {
	if sub == nil {
		return false
	}
	for _, role := range roles {
		if sub.Role == role {
			return true
		}
	}
	return false
}
