package authz

import "errors"

// Domain errors
var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrUnknownPermission = errors.New("unknown permission")
	ErrEmptyRoleEntry    = errors.New("role maps to empty permission set")
)

// Catalog is the single source of truth for valid permission identifiers
// and the role→permission table. It is built once at startup and never
// mutated afterwards, so it is safe for concurrent readers without locking.
type Catalog struct {
	table map[Role]PermissionSet
	known PermissionSet
}

// NewCatalog builds the canonical catalog. The global_admin entry is
// pinned to {all}; the constructor is the only write path.
func NewCatalog() *Catalog {
	c := &Catalog{
		table: map[Role]PermissionSet{
			RoleGlobalAdmin:          NewPermissionSet(GlobalAdminPermissions...),
			RoleStoreAdmin:           NewPermissionSet(StoreAdminPermissions...),
			RoleSalesExecutive:       NewPermissionSet(SalesExecutivePermissions...),
			RoleProcurementAdmin:     NewPermissionSet(ProcurementAdminPermissions...),
			RoleProcurementExecutive: NewPermissionSet(ProcurementExecutivePermissions...),
		},
		known: NewPermissionSet(
			PermAll,
			PermViewAnalytics,
			PermManageStore,
			PermManageStoreUsers,
			PermViewLeads,
			PermManageLeads,
			PermViewInventory,
			PermManageInventory,
			PermViewProcurement,
			PermManageProcurement,
			PermVerifyVehicles,
		),
	}
	return c
}

// Validate checks the hard invariants of the table: every role maps to a
// non-empty set, and global_admin maps to exactly {all}.
func (c *Catalog) Validate() error {
	for role, perms := range c.table {
		if len(perms) == 0 {
			return ErrEmptyRoleEntry
		}
		if role == RoleGlobalAdmin {
			if len(perms) != 1 || !perms.Contains(PermAll) {
				return errors.New("global_admin entry must be exactly {all}")
			}
		}
	}
	return nil
}

// PermissionsForRole returns the table entry for role, or ErrUnknownRole
// if role is not in the closed set. The returned set is shared and must
// not be mutated by callers.
func (c *Catalog) PermissionsForRole(role Role) (PermissionSet, error) {
	perms, ok := c.table[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	return perms, nil
}

// KnownRole reports whether role is in the closed role set.
func (c *Catalog) KnownRole(role Role) bool {
	_, ok := c.table[role]
	return ok
}

// Known reports whether p is a catalog permission. Unknown literals are
// still denied (never errors) by the resolver; this exists so callers
// can log the programming error for diagnosis.
func (c *Catalog) Known(p Permission) bool {
	return c.known.Contains(p)
}

// Roles returns the closed role set. Order is unspecified.
func (c *Catalog) Roles() []Role {
	roles := make([]Role, 0, len(c.table))
	for r := range c.table {
		roles = append(roles, r)
	}
	return roles
}
