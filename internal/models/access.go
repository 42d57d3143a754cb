package models

import "github.com/samber/lo"

// AccessProfile is the resolved view of a user's roles and effective permissions
type AccessProfile struct {
	UserID      string      `json:"userId"`
	Roles       []string    `json:"roles"`
	Permissions []string    `json:"permissions"`
	Elevated    bool        `json:"elevated"`
	Detail      []RoleGrant `json:"detailedRolesAndPermissions"`
}

// RoleGrant lists the permission codes granted through one role
type RoleGrant struct {
	RoleName    string   `json:"roleName"`
	Permissions []string `json:"permissions"`
}

// EmptyProfile is returned for unknown or deleted users
func EmptyProfile(userID string) *AccessProfile {
	return &AccessProfile{
		UserID:      userID,
		Roles:       []string{},
		Permissions: []string{},
		Detail:      []RoleGrant{},
	}
}

// Allows applies the authorization rule: elevated roles bypass permission checks,
// everyone else needs the code among their effective permissions.
func (p *AccessProfile) Allows(permission string) bool {
	if p == nil {
		return false
	}
	if p.Elevated {
		return true
	}
	return lo.Contains(p.Permissions, permission)
}

// HasRole reports whether the profile carries the role slug
func (p *AccessProfile) HasRole(slug string) bool {
	return p != nil && lo.Contains(p.Roles, slug)
}

// UserRoleGrant is a joined row of an active role held by a user
type UserRoleGrant struct {
	RoleID     string `db:"role_id"`
	Slug       string `db:"slug"`
	Name       string `db:"name"`
	IsElevated bool   `db:"is_elevated"`
}

// RolePermissionGrant is a joined row of an active permission granted to a role
type RolePermissionGrant struct {
	RoleID string `db:"role_id"`
	Code   string `db:"code"`
}

type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeClient
	ScopeAll
)

// AccessScope restricts list operations to the records a caller may see
type AccessScope struct {
	Kind     ScopeKind
	ClientID string
}

// Covers reports whether a record owned by clientID is visible in this scope
func (s AccessScope) Covers(clientID string) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeClient:
		return s.ClientID != "" && s.ClientID == clientID
	}
	return false
}
