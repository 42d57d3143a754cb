package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RBACService manages roles, permissions and their assignments
type RBACService struct {
	repo   store.RBACRepository
	access *AccessControl
	logger *zap.Logger
}

// NewRBACService creates a new RBAC service
func NewRBACService(repo store.RBACRepository, access *AccessControl) *RBACService {
	return &RBACService{
		repo:   repo,
		access: access,
		logger: util.GetLogger(),
	}
}

// RoleInput is the payload for creating or updating a role
type RoleInput struct {
	Slug        string `json:"slug" yaml:"slug"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Elevated    *bool  `json:"is_elevated,omitempty" yaml:"is_elevated"`
}

// PermissionInput is the payload for creating or updating a permission
type PermissionInput struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// RoleView is a role together with its active permission codes
type RoleView struct {
	*models.Role
	Permissions []string `json:"permissions"`
}

func (in *RoleInput) normalize() error {
	in.Slug = ToUnderscoreUpper(in.Slug)
	in.Name = Capitalize(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	fields := map[string]string{}
	if in.Slug == "" {
		fields["slug"] = "required"
	} else if !lo.Contains(models.UserTypes, in.Slug) {
		fields["slug"] = fmt.Sprintf("must be one of %s", strings.Join(models.UserTypes, ", "))
	}
	if in.Name == "" {
		fields["name"] = "required"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid role", fields)
	}
	return nil
}

func (in *PermissionInput) normalize() error {
	in.Code = ToUnderscoreUpper(in.Code)
	in.Name = Capitalize(in.Name)
	in.Type = ToUnderscoreUpper(in.Type)
	in.Description = strings.TrimSpace(in.Description)

	fields := map[string]string{}
	if in.Code == "" {
		fields["code"] = "required"
	}
	if in.Name == "" {
		fields["name"] = "required"
	}
	if !lo.Contains(models.PermissionTypes, in.Type) {
		fields["type"] = fmt.Sprintf("must be one of %s", strings.Join(models.PermissionTypes, ", "))
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid permission", fields)
	}
	return nil
}

// defaultElevated keeps the built-in administrator slugs elevated unless told otherwise
func defaultElevated(slug string) bool {
	return slug == models.RoleSuperAdmin || slug == models.RoleAdmin
}

// CreateRole validates and stores a role at the next free rank
func (s *RBACService) CreateRole(ctx context.Context, actorID string, in RoleInput) (*models.Role, error) {
	ctx, span := util.StartSpan(ctx, "RBACService.CreateRole")
	defer span.End()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	role := &models.Role{
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		IsElevated:  lo.FromPtrOr(in.Elevated, defaultElevated(in.Slug)),
		CreatedBy:   optional(actorID),
	}

	err := s.repo.Atomic(ctx, func(repo store.RBACRepository) error {
		rank, err := repo.NextRoleRank(ctx)
		if err != nil {
			return fmt.Errorf("failed to compute role rank: %w", err)
		}
		role.Rank = rank
		return repo.CreateRole(ctx, role)
	})
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	s.logger.Info("Role created",
		zap.String("role_id", role.ID),
		zap.String("slug", role.Slug),
		zap.Int("rank", role.Rank))
	return role, nil
}

// UpdateRole replaces the editable fields of a role
func (s *RBACService) UpdateRole(ctx context.Context, actorID, roleID string, in RoleInput) (*models.Role, error) {
	ctx, span := util.StartSpan(ctx, "RBACService.UpdateRole")
	defer span.End()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}

	role.Slug = in.Slug
	role.Name = in.Name
	role.Description = in.Description
	if in.Elevated != nil {
		role.IsElevated = *in.Elevated
	}
	role.UpdatedBy = optional(actorID)

	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return nil, util.RecordError(span, err)
	}
	return role, nil
}

// GetRole returns a role with its active permission codes
func (s *RBACService) GetRole(ctx context.Context, roleID string) (*RoleView, error) {
	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}

	grants, err := s.repo.ListRolePermissionGrants(ctx, []string{roleID})
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}

	return &RoleView{
		Role:        role,
		Permissions: lo.Map(grants, func(g models.RolePermissionGrant, _ int) string { return g.Code }),
	}, nil
}

// ListRoles returns every role to elevated callers and nothing to anyone else
func (s *RBACService) ListRoles(ctx context.Context, actorID string) ([]models.Role, error) {
	profile, err := s.access.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !profile.Elevated {
		return []models.Role{}, nil
	}
	return s.repo.ListRoles(ctx)
}

// CreatePermission validates and stores a permission
func (s *RBACService) CreatePermission(ctx context.Context, actorID string, in PermissionInput) (*models.Permission, error) {
	ctx, span := util.StartSpan(ctx, "RBACService.CreatePermission")
	defer span.End()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	perm := &models.Permission{
		Code:        in.Code,
		Name:        in.Name,
		Type:        in.Type,
		Description: in.Description,
		CreatedBy:   optional(actorID),
	}
	if err := s.repo.CreatePermission(ctx, perm); err != nil {
		return nil, util.RecordError(span, err)
	}

	s.logger.Info("Permission created", zap.String("permission_id", perm.ID), zap.String("code", perm.Code))
	return perm, nil
}

// UpdatePermission replaces the editable fields of a permission
func (s *RBACService) UpdatePermission(ctx context.Context, actorID, permissionID string, in PermissionInput) (*models.Permission, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	perm, err := s.repo.GetPermissionByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}

	perm.Code = in.Code
	perm.Name = in.Name
	perm.Type = in.Type
	perm.Description = in.Description
	perm.UpdatedBy = optional(actorID)

	if err := s.repo.UpdatePermission(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// GetPermission returns a permission by id, soft deleted ones included
func (s *RBACService) GetPermission(ctx context.Context, permissionID string) (*models.Permission, error) {
	return s.repo.GetPermissionByID(ctx, permissionID)
}

// ListPermissions returns every permission to elevated callers and nothing to anyone else
func (s *RBACService) ListPermissions(ctx context.Context, actorID string) ([]models.Permission, error) {
	profile, err := s.access.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !profile.Elevated {
		return []models.Permission{}, nil
	}
	return s.repo.ListPermissions(ctx)
}

// AssignPermissionsToRole makes the role's permission set equal to permissionIDs.
// Only the difference is written, so repeating the call changes nothing.
func (s *RBACService) AssignPermissionsToRole(ctx context.Context, roleID string, permissionIDs []string) error {
	ctx, span := util.StartSpanWith(ctx, "RBACService.AssignPermissionsToRole", "role_id", roleID)
	defer span.End()

	desired := lo.Uniq(permissionIDs)

	err := s.repo.Atomic(ctx, func(repo store.RBACRepository) error {
		if err := requireActiveRole(ctx, repo, roleID); err != nil {
			return err
		}

		active, err := repo.ActivePermissionIDs(ctx, desired)
		if err != nil {
			return fmt.Errorf("failed to load permissions: %w", err)
		}
		if missing := lo.Without(desired, active...); len(missing) > 0 {
			return apperr.NotFoundf("permissions not found: %s", strings.Join(missing, ", "))
		}

		current, err := repo.RolePermissionIDs(ctx, roleID)
		if err != nil {
			return fmt.Errorf("failed to load role permissions: %w", err)
		}

		stale, added := lo.Difference(current, desired)
		if err := repo.RemoveRolePermissions(ctx, roleID, stale); err != nil {
			return fmt.Errorf("failed to remove role permissions: %w", err)
		}
		if err := repo.AddRolePermissions(ctx, roleID, added); err != nil {
			return fmt.Errorf("failed to add role permissions: %w", err)
		}

		s.logger.Info("Role permissions assigned",
			zap.String("role_id", roleID),
			zap.Int("added", len(added)),
			zap.Int("removed", len(stale)))
		return nil
	})
	return util.RecordError(span, err)
}

// AssignRolesToUser makes the user's role set equal to roleIDs
func (s *RBACService) AssignRolesToUser(ctx context.Context, userID string, roleIDs []string) error {
	ctx, span := util.StartSpanWith(ctx, "RBACService.AssignRolesToUser", "user_id", userID)
	defer span.End()

	desired := lo.Uniq(roleIDs)

	err := s.repo.Atomic(ctx, func(repo store.RBACRepository) error {
		user, err := repo.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.IsDeleted {
			return apperr.NotFoundf("user %s not found", userID)
		}

		active, err := repo.ActiveRoleIDs(ctx, desired)
		if err != nil {
			return fmt.Errorf("failed to load roles: %w", err)
		}
		if missing := lo.Without(desired, active...); len(missing) > 0 {
			return apperr.NotFoundf("roles not found: %s", strings.Join(missing, ", "))
		}

		current, err := repo.UserRoleIDs(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load user roles: %w", err)
		}

		stale, added := lo.Difference(current, desired)
		if err := repo.RemoveUserRoles(ctx, userID, stale); err != nil {
			return fmt.Errorf("failed to remove user roles: %w", err)
		}
		if err := repo.AddUserRoles(ctx, userID, added); err != nil {
			return fmt.Errorf("failed to add user roles: %w", err)
		}

		s.logger.Info("User roles assigned",
			zap.String("user_id", userID),
			zap.Int("added", len(added)),
			zap.Int("removed", len(stale)))
		return nil
	})
	return util.RecordError(span, err)
}

// RolePermissions returns the active permission codes granted to a role
func (s *RBACService) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	view, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return view.Permissions, nil
}

// UserRoles returns the active roles held by a user
func (s *RBACService) UserRoles(ctx context.Context, userID string) ([]models.UserRoleGrant, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListUserRoleGrants(ctx, userID)
}

func requireActiveRole(ctx context.Context, repo store.RBACRepository, roleID string) error {
	role, err := repo.GetRoleByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsDeleted {
		return apperr.NotFoundf("role %s not found", roleID)
	}
	return nil
}

// SoftDeleteRole hides a role; its holders lose its permissions at once
func (s *RBACService) SoftDeleteRole(ctx context.Context, roleID string) error {
	return lifecycle{s.repo, models.EntityRole}.SoftDelete(ctx, roleID)
}

// ActivateRole restores a soft deleted role
func (s *RBACService) ActivateRole(ctx context.Context, roleID string) error {
	return lifecycle{s.repo, models.EntityRole}.Activate(ctx, roleID)
}

// DeleteRole permanently removes a soft deleted role that nothing references
func (s *RBACService) DeleteRole(ctx context.Context, roleID string) error {
	return s.repo.Atomic(ctx, func(repo store.RBACRepository) error {
		users, perms, err := repo.CountRoleReferences(ctx, roleID)
		if err != nil {
			return fmt.Errorf("failed to count role references: %w", err)
		}
		if perms > 0 {
			return apperr.Conflictf("role cannot be deleted as it has associated permissions")
		}
		if users > 0 {
			return apperr.Conflictf("role cannot be deleted as it has associated users")
		}
		return lifecycle{repo, models.EntityRole}.Delete(ctx, roleID)
	})
}

// SoftDeletePermission hides a permission from every role that grants it
func (s *RBACService) SoftDeletePermission(ctx context.Context, permissionID string) error {
	return lifecycle{s.repo, models.EntityPermission}.SoftDelete(ctx, permissionID)
}

// ActivatePermission restores a soft deleted permission
func (s *RBACService) ActivatePermission(ctx context.Context, permissionID string) error {
	return lifecycle{s.repo, models.EntityPermission}.Activate(ctx, permissionID)
}

// DeletePermission permanently removes a soft deleted permission no role holds
func (s *RBACService) DeletePermission(ctx context.Context, permissionID string) error {
	return s.repo.Atomic(ctx, func(repo store.RBACRepository) error {
		n, err := repo.CountPermissionReferences(ctx, permissionID)
		if err != nil {
			return fmt.Errorf("failed to count permission references: %w", err)
		}
		if n > 0 {
			return apperr.Conflictf("permission cannot be deleted as it is assigned to roles")
		}
		return lifecycle{repo, models.EntityPermission}.Delete(ctx, permissionID)
	})
}
