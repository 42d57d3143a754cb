package store

import (
	"context"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/models"
)

// LifecycleRepository implements the soft delete / activate / hard delete contract
// shared by every soft-deletable entity.
type LifecycleRepository interface {
	SetDeleted(ctx context.Context, entity, id string, deleted bool) error
	HardDelete(ctx context.Context, entity, id string) error
}

type UserRepository interface {
	LifecycleRepository
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	SetUserClient(ctx context.Context, userID string, clientID *string) error
}

// RBACRepository covers roles, permissions and their assignment tables
type RBACRepository interface {
	LifecycleRepository
	// Atomic runs fn against a repository bound to a single transaction
	Atomic(ctx context.Context, fn func(repo RBACRepository) error) error

	GetUserByID(ctx context.Context, id string) (*models.User, error)

	NextRoleRank(ctx context.Context) (int, error)
	CreateRole(ctx context.Context, role *models.Role) error
	GetRoleByID(ctx context.Context, id string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	UpdateRole(ctx context.Context, role *models.Role) error

	CreatePermission(ctx context.Context, perm *models.Permission) error
	GetPermissionByID(ctx context.Context, id string) (*models.Permission, error)
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	UpdatePermission(ctx context.Context, perm *models.Permission) error

	ActiveRoleIDs(ctx context.Context, ids []string) ([]string, error)
	ActivePermissionIDs(ctx context.Context, ids []string) ([]string, error)

	RolePermissionIDs(ctx context.Context, roleID string) ([]string, error)
	AddRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	RemoveRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error

	UserRoleIDs(ctx context.Context, userID string) ([]string, error)
	AddUserRoles(ctx context.Context, userID string, roleIDs []string) error
	RemoveUserRoles(ctx context.Context, userID string, roleIDs []string) error

	ListUserRoleGrants(ctx context.Context, userID string) ([]models.UserRoleGrant, error)
	ListRolePermissionGrants(ctx context.Context, roleIDs []string) ([]models.RolePermissionGrant, error)

	CountRoleReferences(ctx context.Context, roleID string) (users int, permissions int, err error)
	CountPermissionReferences(ctx context.Context, permissionID string) (int, error)
}

type CatalogRepository interface {
	LifecycleRepository
	CreateClient(ctx context.Context, client *models.Client) error
	GetClientByID(ctx context.Context, id string) (*models.Client, error)
	ListClients(ctx context.Context, scope models.AccessScope) ([]models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error

	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, scope models.AccessScope) ([]models.Product, error)
	ListActiveProductsByClient(ctx context.Context, clientID string) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
}

// OrderRepository covers orders and the stock they consume
type OrderRepository interface {
	Atomic(ctx context.Context, fn func(repo OrderRepository) error) error

	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, scope models.AccessScope) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	MarkOrderPaid(ctx context.Context, id string, receipt models.PaymentReceipt, paidAt time.Time) (bool, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (bool, error)
}

// EventRepository records consumed events for idempotent handling
type EventRepository interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

type rbacRepo struct{ *Store }

func (r rbacRepo) Atomic(ctx context.Context, fn func(repo RBACRepository) error) error {
	return r.Store.WithTx(ctx, func(tx *Store) error {
		return fn(rbacRepo{tx})
	})
}

type orderRepo struct{ *Store }

func (r orderRepo) Atomic(ctx context.Context, fn func(repo OrderRepository) error) error {
	return r.Store.WithTx(ctx, func(tx *Store) error {
		return fn(orderRepo{tx})
	})
}

// RBAC returns the store as an RBACRepository
func (s *Store) RBAC() RBACRepository {
	return rbacRepo{s}
}

// Orders returns the store as an OrderRepository
func (s *Store) Orders() OrderRepository {
	return orderRepo{s}
}

var (
	_ UserRepository    = (*Store)(nil)
	_ CatalogRepository = (*Store)(nil)
	_ EventRepository   = (*Store)(nil)
)
