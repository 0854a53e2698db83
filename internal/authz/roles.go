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

// Role is a fixed job-function tag assigned to a user. The set is
// closed; a user's role is immutable for the lifetime of a session.
type Role string

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names for roles stored in the database.
// -----------------------------------------------------------------------------

const (
	// RoleGlobalAdmin is the chain-wide administrator role.
	// Permissions: all (wildcard)
	RoleGlobalAdmin Role = "global_admin"

	// RoleStoreAdmin administers a single store.
	// Scope: storeId/storeName
	RoleStoreAdmin Role = "store_admin"

	// RoleSalesExecutive works leads and inventory within a store.
	// Scope: storeId/storeName
	RoleSalesExecutive Role = "sales_executive"

	// RoleProcurementAdmin manages vehicle procurement for a city.
	// Scope: managedCity
	RoleProcurementAdmin Role = "procurement_admin"

	// RoleProcurementExecutive sources vehicles under a procurement admin.
	// Scope: reportingTo (back-reference to a procurement_admin)
	RoleProcurementExecutive Role = "procurement_executive"
)

// -----------------------------------------------------------------------------
// Role Permission Mappings
// These define the default permissions for each role. The effective set
// of a session is the union of its explicit grants and its role's entry.
// -----------------------------------------------------------------------------

// GlobalAdminPermissions defines permissions for the global_admin role.
var GlobalAdminPermissions = []Permission{
	PermAll, // Wildcard: all permissions
}

// StoreAdminPermissions defines permissions for the store_admin role.
var StoreAdminPermissions = []Permission{
	PermViewAnalytics,
	PermManageStore,
	PermManageStoreUsers,
	PermViewLeads,
	PermManageLeads,
	PermViewInventory,
	PermManageInventory,
}

// SalesExecutivePermissions defines permissions for the sales_executive role.
var SalesExecutivePermissions = []Permission{
	PermViewLeads,
	PermManageLeads,
	PermViewInventory,
}

// ProcurementAdminPermissions defines permissions for the procurement_admin role.
var ProcurementAdminPermissions = []Permission{
	PermViewAnalytics,
	PermViewProcurement,
	PermManageProcurement,
	PermVerifyVehicles,
}

// ProcurementExecutivePermissions defines permissions for the
// procurement_executive role.
var ProcurementExecutivePermissions = []Permission{
	PermViewProcurement,
	PermVerifyVehicles,
}
