package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, "order"))

	err := mapError(fmt.Errorf("query: %w", sql.ErrNoRows), "order")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = mapError(&pq.Error{Code: pqUniqueViolation, Constraint: "roles_slug_key"}, "role")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "roles_slug_key", apperr.From(err).Fields["constraint"])

	err = mapError(&pq.Error{Code: pqForeignKeyViolation}, "client")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = mapError(&pq.Error{Code: pqCheckViolation, Constraint: "products_quantity_check"}, "product")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	raw := errors.New("connection reset")
	assert.Equal(t, raw, mapError(raw, "order"))
}

func TestLifecycleTableWhitelist(t *testing.T) {
	table, err := lifecycleTable(models.EntityRole)
	require.NoError(t, err)
	assert.Equal(t, "roles", table)

	_, err = lifecycleTable("orders; DROP TABLE users")
	assert.Error(t, err)
}

func testStore(t *testing.T) *Store {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Migrate(context.Background())
	require.NoError(t, err)
	return store
}

func TestVerifyPaymentStoreFlow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	client := &models.Client{Name: "Harbour Fresh", Email: "harbour-" + t.Name() + "@example.com"}
	require.NoError(t, store.CreateClient(ctx, client))

	product := &models.Product{
		ClientID: client.ID,
		Name:     "Yellowfin " + client.ID,
		Quantity: 1,
		Types:    models.ProductVariants{{Type: "whole", Price: 2500}},
	}
	require.NoError(t, store.CreateProduct(ctx, product))

	order := &models.Order{
		ClientID:     client.ID,
		CheckoutType: models.CheckoutGuest,
		Items:        models.OrderItems{{ProductID: product.ID, Name: product.Name, Price: 2500, Quantity: 1}},
		PaymentInfo:  models.PaymentInfo{PaymentMethod: models.PaymentOnline},
		Subtotal:     2500,
		Total:        2500,
		Status:       models.OrderStatusPending,
	}
	require.NoError(t, store.CreateOrder(ctx, order))

	receipt := models.PaymentReceipt{Reference: "PH-1", CardBrand: "VISA", MaskedCardNumber: "************4242"}
	changed, err := store.MarkOrderPaid(ctx, order.ID, receipt, order.CreatedAt)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.MarkOrderPaid(ctx, order.ID, models.PaymentReceipt{Reference: "PH-2"}, order.CreatedAt)
	require.NoError(t, err)
	assert.False(t, changed)

	ok, err := store.DecrementStock(ctx, product.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DecrementStock(ctx, product.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	retrieved, err := store.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, retrieved.IsPaid)
	assert.Equal(t, models.OrderStatusProcessing, retrieved.Status)
	assert.Equal(t, "PH-1", retrieved.PaymentInfo.GatewayReference)
	assert.Equal(t, "VISA", retrieved.PaymentInfo.CardBrand)
	assert.Equal(t, "************4242", retrieved.PaymentInfo.MaskedCardNumber)
	assert.Equal(t, models.PaymentOnline, retrieved.PaymentInfo.PaymentMethod)
}

func TestWithTxRollsBack(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	client := &models.Client{Name: "Rollback", Email: "rollback-" + t.Name() + "@example.com"}
	err := store.WithTx(ctx, func(tx *Store) error {
		if err := tx.CreateClient(ctx, client); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = store.GetClientByID(ctx, client.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestHardDeleteRequiresSoftDelete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	role := &models.Role{Slug: "MEMBER_" + t.Name(), Name: "Member " + t.Name()}
	require.NoError(t, createRole(ctx, store, role))

	err := store.HardDelete(ctx, models.EntityRole, role.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, store.SetDeleted(ctx, models.EntityRole, role.ID, true))
	require.NoError(t, store.HardDelete(ctx, models.EntityRole, role.ID))
}

func createRole(ctx context.Context, store *Store, role *models.Role) error {
	return store.WithTx(ctx, func(tx *Store) error {
		rank, err := tx.NextRoleRank(ctx)
		if err != nil {
			return err
		}
		role.Rank = rank
		return tx.CreateRole(ctx, role)
	})
}

func TestConcurrentRoleCreationGetsDistinctRanks(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	roles := make([]*models.Role, 8)
	errs := make([]error, len(roles))

	var wg sync.WaitGroup
	for i := range roles {
		suffix := uuid.New().String()
		roles[i] = &models.Role{Slug: "ROLE_" + suffix, Name: "Role " + suffix}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = createRole(ctx, store, roles[i])
		}(i)
	}
	wg.Wait()

	seen := map[int]bool{}
	for i, role := range roles {
		require.NoError(t, errs[i])
		assert.False(t, seen[role.Rank], "rank %d handed out twice", role.Rank)
		seen[role.Rank] = true
	}
}

func TestPermissionCodeUniqueAcrossSoftDelete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	code := "REPORT_" + uuid.New().String()
	perm := &models.Permission{Code: code, Name: "Report " + code, Type: "REPORT"}
	require.NoError(t, store.CreatePermission(ctx, perm))
	require.NoError(t, store.SetDeleted(ctx, models.EntityPermission, perm.ID, true))

	err := store.CreatePermission(ctx, &models.Permission{Code: code, Name: "Other " + code, Type: "REPORT"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = store.CreatePermission(ctx, &models.Permission{Code: "OTHER_" + code, Name: perm.Name, Type: "REPORT"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	require.NoError(t, store.SetDeleted(ctx, models.EntityPermission, perm.ID, false))
	restored, err := store.GetPermissionByID(ctx, perm.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
}
