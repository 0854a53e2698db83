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

// Permission identifies a single capability a session may hold.
// The vocabulary is closed; unknown literals never match anything.
type Permission string

const (
	// PermAll is the reserved wildcard meaning every permission,
	// present and future. Only global_admin carries it by default.
	PermAll Permission = "all"

	// Dashboard and reporting
	PermViewAnalytics Permission = "view_analytics"

	// Store operations
	PermManageStore      Permission = "manage_store"
	PermManageStoreUsers Permission = "manage_store_users"

	// Sales
	PermViewLeads       Permission = "view_leads"
	PermManageLeads     Permission = "manage_leads"
	PermViewInventory   Permission = "view_inventory"
	PermManageInventory Permission = "manage_inventory"

	// Procurement
	PermViewProcurement   Permission = "view_procurement"
	PermManageProcurement Permission = "manage_procurement"
	PermVerifyVehicles    Permission = "verify_vehicles"
)

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether p is a member of the set.
func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Slice returns the members of the set. Order is unspecified.
func (s PermissionSet) Slice() []Permission {
	perms := make([]Permission, 0, len(s))
	for p := range s {
		perms = append(perms, p)
	}
	return perms
}

// Union returns a new set holding the members of both sets.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	merged := make(PermissionSet, len(s)+len(other))
	for p := range s {
		merged[p] = struct{}{}
	}
	for p := range other {
		merged[p] = struct{}{}
	}
	return merged
}
