package service

import (
	"context"
	"fmt"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AccessControl resolves a user's roles and effective permissions from the store on
// every call. Results are never cached, so revocations apply to the next request.
type AccessControl struct {
	repo   store.RBACRepository
	logger *zap.Logger
}

// NewAccessControl creates a new access control resolver
func NewAccessControl(repo store.RBACRepository) *AccessControl {
	return &AccessControl{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// Resolve returns the roles and permission union of a user. Unknown or soft deleted
// users resolve to an empty profile.
func (a *AccessControl) Resolve(ctx context.Context, userID string) (*models.AccessProfile, error) {
	ctx, span := util.StartSpanWith(ctx, "AccessControl.Resolve", "user_id", userID)
	defer span.End()

	user, err := a.repo.GetUserByID(ctx, userID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return models.EmptyProfile(userID), nil
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to load user: %w", err))
	}
	if user.IsDeleted {
		return models.EmptyProfile(userID), nil
	}

	roles, err := a.repo.ListUserRoleGrants(ctx, userID)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to load user roles: %w", err))
	}
	if len(roles) == 0 {
		return models.EmptyProfile(userID), nil
	}

	roleIDs := lo.Map(roles, func(r models.UserRoleGrant, _ int) string { return r.RoleID })
	grants, err := a.repo.ListRolePermissionGrants(ctx, roleIDs)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to load role permissions: %w", err))
	}
	byRole := lo.GroupBy(grants, func(g models.RolePermissionGrant) string { return g.RoleID })
	code := func(g models.RolePermissionGrant, _ int) string { return g.Code }

	profile := models.EmptyProfile(userID)
	for _, role := range roles {
		profile.Detail = append(profile.Detail, models.RoleGrant{
			RoleName:    role.Name,
			Permissions: lo.Uniq(lo.Map(byRole[role.RoleID], code)),
		})
		profile.Elevated = profile.Elevated || role.IsElevated
	}
	profile.Roles = lo.Uniq(lo.Map(roles, func(r models.UserRoleGrant, _ int) string { return r.Slug }))
	profile.Permissions = lo.Uniq(lo.Map(grants, code))

	return profile, nil
}

// Authorize resolves the user and checks a single permission code
func (a *AccessControl) Authorize(ctx context.Context, userID, permission string) (*models.AccessProfile, error) {
	profile, err := a.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !profile.Allows(permission) {
		util.AuthorizationDenied.WithLabelValues(permission).Inc()
		a.logger.Info("Permission denied",
			zap.String("user_id", userID),
			zap.String("permission", permission))
		return profile, apperr.PermissionDenied(fmt.Sprintf("missing permission %s", permission))
	}

	return profile, nil
}

// Scope decides which tenant records a user may list: everything for elevated roles,
// the linked client for CLIENT role holders, nothing otherwise.
func (a *AccessControl) Scope(ctx context.Context, userID string) (models.AccessScope, error) {
	ctx, span := util.StartSpanWith(ctx, "AccessControl.Scope", "user_id", userID)
	defer span.End()

	var (
		profile *models.AccessProfile
		user    *models.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = a.Resolve(gctx, userID)
		return err
	})
	g.Go(func() error {
		u, err := a.repo.GetUserByID(gctx, userID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil
		}
		user = u
		return err
	})
	if err := g.Wait(); err != nil {
		return models.AccessScope{}, util.RecordError(span, err)
	}

	switch {
	case profile.Elevated:
		return models.AccessScope{Kind: models.ScopeAll}, nil
	case profile.HasRole(models.RoleClient) && user != nil && user.ClientID != nil:
		return models.AccessScope{Kind: models.ScopeClient, ClientID: *user.ClientID}, nil
	default:
		return models.AccessScope{Kind: models.ScopeNone}, nil
	}
}
