package domain

// Role is an organization-level role carried in the access token.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

type PermissionEntity string

const (
	EntityAudit        PermissionEntity = "audit"
	EntityOrganization PermissionEntity = "organization"
)

type PermissionAction string

const (
	ActionRead   PermissionAction = "read"
	ActionCreate PermissionAction = "create"
	ActionUpdate PermissionAction = "update"
)

//nolint:gochecknoglobals // immutable permission table
var rolePermissions = map[Role]map[PermissionEntity][]PermissionAction{
	RoleOwner: {
		EntityAudit:        {ActionRead, ActionCreate, ActionUpdate},
		EntityOrganization: {ActionRead, ActionCreate, ActionUpdate},
	},
	RoleAdmin: {
		EntityAudit:        {ActionRead, ActionCreate, ActionUpdate},
		EntityOrganization: {ActionRead, ActionCreate, ActionUpdate},
	},
	RoleMember: {
		EntityAudit: {ActionRead, ActionUpdate},
	},
	RoleViewer: {
		EntityAudit: {ActionRead},
	},
}

// Can reports whether the role grants action on entity. Unknown roles grant nothing.
func (r Role) Can(entity PermissionEntity, action PermissionAction) bool {
	for _, a := range rolePermissions[r][entity] {
		if a == action {
			return true
		}
	}
	return false
}

// IsSelfService reports whether the role is restricted to audits it is assigned to.
func (r Role) IsSelfService() bool {
	return r == RoleMember || r == RoleViewer
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}
