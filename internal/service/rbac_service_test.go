package service

import (
	"context"
	"sync"
	"testing"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUnderscoreUpperAndCapitalize(t *testing.T) {
	assert.Equal(t, "SUPER_ADMIN", ToUnderscoreUpper(" super admin "))
	assert.Equal(t, "PRODUCT_VIEW", ToUnderscoreUpper("product-view"))
	assert.Equal(t, "Super Admin", Capitalize("sUPER   admin"))
}

func TestCreateRoleAssignsNextRank(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, f.adminID, RoleInput{Slug: "employee", Name: "shop employee"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, role.Slug)
	assert.Equal(t, "Shop Employee", role.Name)
	assert.Equal(t, 3, role.Rank)
	assert.False(t, role.IsElevated)

	_, err = svc.CreateRole(ctx, f.adminID, RoleInput{Slug: "EMPLOYEE", Name: "Shop Employee"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.CreateRole(ctx, f.adminID, RoleInput{Slug: "pirate", Name: "Pirate"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateRoleConcurrentCallsGetDistinctRanks(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	slugs := []string{models.RoleSuperAdmin, models.RoleEmployee, models.RoleMember, models.RoleUser, models.RoleCustomer}
	ranks := make([]int, len(slugs))
	errs := make([]error, len(slugs))

	var wg sync.WaitGroup
	for i, slug := range slugs {
		wg.Add(1)
		go func(i int, slug string) {
			defer wg.Done()
			role, err := svc.CreateRole(ctx, f.adminID, RoleInput{Slug: slug, Name: slug})
			errs[i] = err
			if err == nil {
				ranks[i] = role.Rank
			}
		}(i, slug)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []int{3, 4, 5, 6, 7}, ranks)
}

func TestPermissionCodeStaysTakenAfterSoftDelete(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	require.NoError(t, svc.SoftDeletePermission(ctx, f.viewPerm))

	_, err := svc.CreatePermission(ctx, f.adminID, PermissionInput{Code: models.PermProductView, Name: "Catalogue View", Type: "PRODUCT"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	_, err = svc.CreatePermission(ctx, f.adminID, PermissionInput{Code: "CATALOGUE_VIEW", Name: "Product View", Type: "PRODUCT"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// the original row comes back instead
	require.NoError(t, svc.ActivatePermission(ctx, f.viewPerm))
	perm, err := svc.GetPermission(ctx, f.viewPerm)
	require.NoError(t, err)
	assert.False(t, perm.IsDeleted)

	_, err = svc.UpdatePermission(ctx, f.adminID, f.orderPerm, PermissionInput{Code: models.PermProductView, Name: "Order View", Type: "ORDER"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAssignPermissionsConvergesToDesiredSet(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, f.adminID, RoleInput{Slug: "MEMBER", Name: "Member"})
	require.NoError(t, err)

	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, []string{f.viewPerm, f.orderPerm, f.viewPerm}))
	codes, err := svc.RolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.PermProductView, models.PermOrderView}, codes)

	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, []string{f.orderPerm}))
	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, []string{f.orderPerm}))
	ids, err := f.store.RolePermissionIDs(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.orderPerm}, ids)
}

func TestAssignRejectsUnknownIDsWithoutPartialWrites(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, f.adminID, RoleInput{Slug: "MEMBER", Name: "Member"})
	require.NoError(t, err)
	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, []string{f.viewPerm}))

	err = svc.AssignPermissionsToRole(ctx, role.ID, []string{f.orderPerm, "missing"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	ids, err := f.store.RolePermissionIDs(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.viewPerm}, ids)

	err = svc.AssignRolesToUser(ctx, f.customer, []string{"missing"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAssignRolesToUserChangesAccessImmediately(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, f.adminID, RoleInput{Slug: "CUSTOMER", Name: "Customer"})
	require.NoError(t, err)
	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, []string{f.viewPerm}))

	require.NoError(t, svc.AssignRolesToUser(ctx, f.customer, []string{role.ID}))
	_, err = f.access.Authorize(ctx, f.customer, models.PermProductView)
	assert.NoError(t, err)

	require.NoError(t, svc.AssignRolesToUser(ctx, f.customer, nil))
	_, err = f.access.Authorize(ctx, f.customer, models.PermProductView)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

func TestDeleteRoleGuards(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, f.adminID, RoleInput{Slug: "MEMBER", Name: "Member"})
	require.NoError(t, err)
	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, []string{f.viewPerm}))

	// active records cannot be hard deleted
	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, nil))
	err = svc.DeleteRole(ctx, role.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, []string{f.viewPerm}))
	require.NoError(t, svc.SoftDeleteRole(ctx, role.ID))
	err = svc.DeleteRole(ctx, role.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	require.NoError(t, svc.ActivateRole(ctx, role.ID))
	require.NoError(t, svc.AssignPermissionsToRole(ctx, role.ID, nil))
	require.NoError(t, svc.SoftDeleteRole(ctx, role.ID))
	require.NoError(t, svc.DeleteRole(ctx, role.ID))

	_, err = svc.GetRole(ctx, role.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeletePermissionGuard(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	require.NoError(t, svc.SoftDeletePermission(ctx, f.viewPerm))
	err := svc.DeletePermission(ctx, f.viewPerm)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	perm, err := svc.CreatePermission(ctx, f.adminID, PermissionInput{Code: "report view", Name: "report view", Type: "report"})
	require.NoError(t, err)
	assert.Equal(t, "REPORT_VIEW", perm.Code)
	require.NoError(t, svc.SoftDeletePermission(ctx, perm.ID))
	require.NoError(t, svc.DeletePermission(ctx, perm.ID))
}

func TestListRolesOnlyForElevatedCallers(t *testing.T) {
	f := newFixture(t)
	svc := NewRBACService(memRBAC{f.store}, f.access)
	ctx := context.Background()

	roles, err := svc.ListRoles(ctx, f.adminID)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	roles, err = svc.ListRoles(ctx, f.operator)
	require.NoError(t, err)
	assert.Empty(t, roles)
}
