package store

import (
	"context"
	"fmt"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// NextRoleRank returns max(rank)+1 over every role. It must run inside WithTx: the
// roles table stays locked against other rank readers and inserts until the
// transaction ends, so concurrent role creation gets distinct ranks.
func (s *Store) NextRoleRank(ctx context.Context) (int, error) {
	if _, err := s.q.ExecContext(ctx, "LOCK TABLE roles IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return 0, fmt.Errorf("failed to lock roles: %w", err)
	}

	var rank int
	err := sqlx.GetContext(ctx, s.q, &rank, "SELECT COALESCE(MAX(rank), 0) + 1 FROM roles")
	return rank, err
}

// CreateRole inserts a role; slug, name and rank are unique
func (s *Store) CreateRole(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	query := `
		INSERT INTO roles (id, slug, name, rank, description, is_elevated, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.q, role, query,
		role.ID, role.Slug, role.Name, role.Rank, role.Description, role.IsElevated, role.CreatedBy)
	return mapError(err, "role")
}

// GetRoleByID retrieves a role by ID, including soft deleted ones
func (s *Store) GetRoleByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	err := sqlx.GetContext(ctx, s.q, &role, "SELECT * FROM roles WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "role")
	}
	return &role, nil
}

// ListRoles retrieves all roles ordered by rank
func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	roles := []models.Role{}
	err := sqlx.SelectContext(ctx, s.q, &roles, "SELECT * FROM roles ORDER BY rank")
	return roles, err
}

// UpdateRole updates the editable role fields
func (s *Store) UpdateRole(ctx context.Context, role *models.Role) error {
	query := `
		UPDATE roles SET slug = $1, name = $2, description = $3, is_elevated = $4,
			updated_by = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`

	err := sqlx.GetContext(ctx, s.q, &role.UpdatedAt, query,
		role.Slug, role.Name, role.Description, role.IsElevated, role.UpdatedBy, role.ID)
	return mapError(err, "role")
}

// CreatePermission inserts a permission; code and name are unique across every
// permission, soft deleted ones included
func (s *Store) CreatePermission(ctx context.Context, perm *models.Permission) error {
	if perm.ID == "" {
		perm.ID = uuid.New().String()
	}
	query := `
		INSERT INTO permissions (id, code, name, type, description, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.q, perm, query,
		perm.ID, perm.Code, perm.Name, perm.Type, perm.Description, perm.CreatedBy)
	return mapError(err, "permission")
}

// GetPermissionByID retrieves a permission by ID, including soft deleted ones
func (s *Store) GetPermissionByID(ctx context.Context, id string) (*models.Permission, error) {
	var perm models.Permission
	err := sqlx.GetContext(ctx, s.q, &perm, "SELECT * FROM permissions WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "permission")
	}
	return &perm, nil
}

// ListPermissions retrieves all permissions ordered by type and code
func (s *Store) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	perms := []models.Permission{}
	err := sqlx.SelectContext(ctx, s.q, &perms, "SELECT * FROM permissions ORDER BY type, code")
	return perms, err
}

// UpdatePermission updates the editable permission fields
func (s *Store) UpdatePermission(ctx context.Context, perm *models.Permission) error {
	query := `
		UPDATE permissions SET code = $1, name = $2, type = $3, description = $4,
			updated_by = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`

	err := sqlx.GetContext(ctx, s.q, &perm.UpdatedAt, query,
		perm.Code, perm.Name, perm.Type, perm.Description, perm.UpdatedBy, perm.ID)
	return mapError(err, "permission")
}

// ActiveRoleIDs returns the subset of ids naming roles that exist and are not soft deleted
func (s *Store) ActiveRoleIDs(ctx context.Context, ids []string) ([]string, error) {
	return s.activeIDs(ctx, "roles", ids)
}

// ActivePermissionIDs returns the subset of ids naming active permissions
func (s *Store) ActivePermissionIDs(ctx context.Context, ids []string) ([]string, error) {
	return s.activeIDs(ctx, "permissions", ids)
}

func (s *Store) activeIDs(ctx context.Context, table string, ids []string) ([]string, error) {
	found := []string{}
	if len(ids) == 0 {
		return found, nil
	}

	query, args, err := sqlx.In("SELECT id FROM "+table+" WHERE id IN (?) AND is_deleted = FALSE", ids)
	if err != nil {
		return nil, err
	}
	query = s.q.Rebind(query)

	err = sqlx.SelectContext(ctx, s.q, &found, query, args...)
	return found, err
}

// RolePermissionIDs lists the permission IDs currently linked to a role
func (s *Store) RolePermissionIDs(ctx context.Context, roleID string) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, s.q, &ids,
		"SELECT permission_id FROM role_permissions WHERE role_id = $1", roleID)
	return ids, err
}

// AddRolePermissions links permissions to a role, ignoring existing links
func (s *Store) AddRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	for _, permissionID := range permissionIDs {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO role_permissions (id, role_id, permission_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (role_id, permission_id) DO NOTHING`,
			uuid.New().String(), roleID, permissionID, time.Now().UTC())
		if err != nil {
			return mapError(err, "role permission")
		}
	}
	return nil
}

// RemoveRolePermissions unlinks permissions from a role
func (s *Store) RemoveRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"DELETE FROM role_permissions WHERE role_id = ? AND permission_id IN (?)", roleID, permissionIDs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	return err
}

// UserRoleIDs lists the role IDs currently linked to a user
func (s *Store) UserRoleIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, s.q, &ids,
		"SELECT role_id FROM user_roles WHERE user_id = $1", userID)
	return ids, err
}

// AddUserRoles links roles to a user, ignoring existing links
func (s *Store) AddUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO user_roles (id, user_id, role_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, role_id) DO NOTHING`,
			uuid.New().String(), userID, roleID, time.Now().UTC())
		if err != nil {
			return mapError(err, "user role")
		}
	}
	return nil
}

// RemoveUserRoles unlinks roles from a user
func (s *Store) RemoveUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"DELETE FROM user_roles WHERE user_id = ? AND role_id IN (?)", userID, roleIDs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	return err
}

// ListUserRoleGrants returns the active roles held by a user
func (s *Store) ListUserRoleGrants(ctx context.Context, userID string) ([]models.UserRoleGrant, error) {
	grants := []models.UserRoleGrant{}
	err := sqlx.SelectContext(ctx, s.q, &grants, `
		SELECT r.id AS role_id, r.slug, r.name, r.is_elevated
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1 AND r.is_deleted = FALSE
		ORDER BY r.rank`, userID)
	return grants, err
}

// ListRolePermissionGrants returns the active permission codes granted to the given roles
func (s *Store) ListRolePermissionGrants(ctx context.Context, roleIDs []string) ([]models.RolePermissionGrant, error) {
	grants := []models.RolePermissionGrant{}
	if len(roleIDs) == 0 {
		return grants, nil
	}

	query, args, err := sqlx.In(`
		SELECT rp.role_id, p.code
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id IN (?) AND p.is_deleted = FALSE
		ORDER BY p.code`, roleIDs)
	if err != nil {
		return nil, err
	}

	err = sqlx.SelectContext(ctx, s.q, &grants, s.q.Rebind(query), args...)
	return grants, err
}

// CountRoleReferences counts the user and permission links of a role
func (s *Store) CountRoleReferences(ctx context.Context, roleID string) (int, int, error) {
	var counts struct {
		Users       int `db:"users"`
		Permissions int `db:"permissions"`
	}
	err := sqlx.GetContext(ctx, s.q, &counts, `
		SELECT
			(SELECT COUNT(*) FROM user_roles WHERE role_id = $1) AS users,
			(SELECT COUNT(*) FROM role_permissions WHERE role_id = $1) AS permissions`, roleID)
	return counts.Users, counts.Permissions, err
}

// CountPermissionReferences counts the role links of a permission
func (s *Store) CountPermissionReferences(ctx context.Context, permissionID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.q, &n,
		"SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1", permissionID)
	return n, err
}
