package service

import (
	"context"
	"fmt"

	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SeedData is the bootstrap catalogue of roles and permissions
type SeedData struct {
	Permissions []PermissionInput `yaml:"permissions"`
	Roles       []SeedRole        `yaml:"roles"`
	Admins      []SeedAdmin       `yaml:"admins"`
}

// SeedRole is a role plus the permission codes it grants
type SeedRole struct {
	RoleInput   `yaml:",inline"`
	Permissions []string `yaml:"permissions"`
}

// SeedAdmin is an account created at bootstrap and given one role
type SeedAdmin struct {
	UserInput `yaml:",inline"`
	Role      string `yaml:"role"`
}

// SeedReport counts what a seed run created
type SeedReport struct {
	PermissionsCreated int
	RolesCreated       int
	RolesAssigned      int
}

// Seed creates the missing roles and permissions and sets each seeded role's
// permissions. Existing rows are matched by code or slug and left as they are,
// so running it twice changes nothing.
func (s *RBACService) Seed(ctx context.Context, data SeedData) (*SeedReport, error) {
	ctx, span := util.StartSpan(ctx, "RBACService.Seed")
	defer span.End()

	report := &SeedReport{}

	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list permissions: %w", err))
	}
	byCode := lo.SliceToMap(perms, func(p models.Permission) (string, string) { return p.Code, p.ID })

	for _, in := range data.Permissions {
		if err := in.normalize(); err != nil {
			return report, fmt.Errorf("permission %q: %w", in.Code, err)
		}
		if _, ok := byCode[in.Code]; ok {
			continue
		}
		perm, err := s.CreatePermission(ctx, "", in)
		if err != nil {
			return report, util.RecordError(span, err)
		}
		byCode[perm.Code] = perm.ID
		report.PermissionsCreated++
	}

	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return report, util.RecordError(span, fmt.Errorf("failed to list roles: %w", err))
	}
	bySlug := lo.SliceToMap(roles, func(r models.Role) (string, string) { return r.Slug, r.ID })

	for _, sr := range data.Roles {
		in := sr.RoleInput
		if err := in.normalize(); err != nil {
			return report, fmt.Errorf("role %q: %w", sr.Slug, err)
		}
		roleID, ok := bySlug[in.Slug]
		if !ok {
			role, err := s.CreateRole(ctx, "", in)
			if err != nil {
				return report, util.RecordError(span, err)
			}
			roleID = role.ID
			bySlug[role.Slug] = role.ID
			report.RolesCreated++
		}

		if sr.Permissions == nil {
			continue
		}
		ids := make([]string, 0, len(sr.Permissions))
		for _, code := range sr.Permissions {
			id, ok := byCode[ToUnderscoreUpper(code)]
			if !ok {
				return report, fmt.Errorf("role %s references unknown permission %s", in.Slug, code)
			}
			ids = append(ids, id)
		}
		if err := s.AssignPermissionsToRole(ctx, roleID, ids); err != nil {
			return report, util.RecordError(span, err)
		}
		report.RolesAssigned++
	}

	s.logger.Info("RBAC seed applied",
		zap.Int("permissions_created", report.PermissionsCreated),
		zap.Int("roles_created", report.RolesCreated),
		zap.Int("roles_assigned", report.RolesAssigned))
	return report, nil
}

// RoleIDBySlug finds a role by its slug
func (s *RBACService) RoleIDBySlug(ctx context.Context, slug string) (string, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return "", err
	}
	role, ok := lo.Find(roles, func(r models.Role) bool { return r.Slug == ToUnderscoreUpper(slug) })
	if !ok {
		return "", fmt.Errorf("role %s not found", slug)
	}
	return role.ID, nil
}
