package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// memStore is an in-memory stand-in for *store.Store. Atomic holds the lock for the
// whole callback and restores a snapshot when it fails.
type memStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	users     map[string]models.User
	roles     map[string]models.Role
	perms     map[string]models.Permission
	rolePerms map[string]map[string]bool
	userRoles map[string]map[string]bool
	clients   map[string]models.Client
	products  map[string]models.Product
	orders    map[string]models.Order
	events    map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		mu: &sync.Mutex{},
		data: &memData{
			users:     map[string]models.User{},
			roles:     map[string]models.Role{},
			perms:     map[string]models.Permission{},
			rolePerms: map[string]map[string]bool{},
			userRoles: map[string]map[string]bool{},
			clients:   map[string]models.Client{},
			products:  map[string]models.Product{},
			orders:    map[string]models.Order{},
			events:    map[string]string{},
		},
	}
}

func copyMap[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySets(m map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(m))
	for k, v := range m {
		out[k] = copyMap(v)
	}
	return out
}

func (d *memData) clone() memData {
	return memData{
		users:     copyMap(d.users),
		roles:     copyMap(d.roles),
		perms:     copyMap(d.perms),
		rolePerms: copySets(d.rolePerms),
		userRoles: copySets(d.userRoles),
		clients:   copyMap(d.clients),
		products:  copyMap(d.products),
		orders:    copyMap(d.orders),
		events:    copyMap(d.events),
	}
}

func (m *memStore) guard() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) atomic(fn func(tx *memStore) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&memStore{mu: m.mu, data: m.data, inTx: true}); err != nil {
		*m.data = snapshot
		return err
	}
	return nil
}

type memRBAC struct{ *memStore }

func (r memRBAC) Atomic(ctx context.Context, fn func(repo store.RBACRepository) error) error {
	return r.atomic(func(tx *memStore) error { return fn(memRBAC{tx}) })
}

type memOrders struct{ *memStore }

func (r memOrders) Atomic(ctx context.Context, fn func(repo store.OrderRepository) error) error {
	return r.atomic(func(tx *memStore) error { return fn(memOrders{tx}) })
}

var (
	_ store.RBACRepository    = memRBAC{}
	_ store.OrderRepository   = memOrders{}
	_ store.UserRepository    = (*memStore)(nil)
	_ store.CatalogRepository = (*memStore)(nil)
)

// lifecycle

func (m *memStore) SetDeleted(ctx context.Context, entity, id string, deleted bool) error {
	defer m.guard()()
	var deletedAt *time.Time
	if deleted {
		now := time.Now()
		deletedAt = &now
	}

	switch entity {
	case models.EntityUser:
		if v, ok := m.data.users[id]; ok {
			v.IsDeleted, v.DeletedAt = deleted, deletedAt
			m.data.users[id] = v
			return nil
		}
	case models.EntityRole:
		if v, ok := m.data.roles[id]; ok {
			v.IsDeleted, v.DeletedAt = deleted, deletedAt
			m.data.roles[id] = v
			return nil
		}
	case models.EntityPermission:
		if v, ok := m.data.perms[id]; ok {
			v.IsDeleted, v.DeletedAt = deleted, deletedAt
			m.data.perms[id] = v
			return nil
		}
	case models.EntityClient:
		if v, ok := m.data.clients[id]; ok {
			v.IsDeleted, v.DeletedAt = deleted, deletedAt
			m.data.clients[id] = v
			return nil
		}
	case models.EntityProduct:
		if v, ok := m.data.products[id]; ok {
			v.IsDeleted, v.DeletedAt = deleted, deletedAt
			m.data.products[id] = v
			return nil
		}
	}
	return apperr.NotFoundf("%s %s not found", entity, id)
}

func (m *memStore) HardDelete(ctx context.Context, entity, id string) error {
	defer m.guard()()
	notFound := apperr.NotFoundf("%s %s not found", entity, id)

	switch entity {
	case models.EntityUser:
		if v, ok := m.data.users[id]; ok && v.IsDeleted {
			delete(m.data.users, id)
			delete(m.data.userRoles, id)
			return nil
		}
	case models.EntityRole:
		if v, ok := m.data.roles[id]; ok && v.IsDeleted {
			delete(m.data.roles, id)
			return nil
		}
	case models.EntityPermission:
		if v, ok := m.data.perms[id]; ok && v.IsDeleted {
			delete(m.data.perms, id)
			return nil
		}
	case models.EntityClient:
		if v, ok := m.data.clients[id]; ok && v.IsDeleted {
			delete(m.data.clients, id)
			return nil
		}
	case models.EntityProduct:
		if v, ok := m.data.products[id]; ok && v.IsDeleted {
			delete(m.data.products, id)
			return nil
		}
	}
	return notFound
}

// users

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	defer m.guard()()
	for _, u := range m.data.users {
		if u.Email == user.Email {
			return apperr.Conflictf("user already exists")
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	m.data.users[user.ID] = *user
	return nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	defer m.guard()()
	u, ok := m.data.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer m.guard()()
	for _, u := range m.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.NotFoundf("user not found")
}

func (m *memStore) ListUsers(ctx context.Context) ([]models.User, error) {
	defer m.guard()()
	return lo.Values(m.data.users), nil
}

func (m *memStore) UpdateUser(ctx context.Context, user *models.User) error {
	defer m.guard()()
	if _, ok := m.data.users[user.ID]; !ok {
		return apperr.NotFoundf("user not found")
	}
	m.data.users[user.ID] = *user
	return nil
}

func (m *memStore) SetUserClient(ctx context.Context, userID string, clientID *string) error {
	defer m.guard()()
	u, ok := m.data.users[userID]
	if !ok {
		return apperr.NotFoundf("user not found")
	}
	u.ClientID = clientID
	m.data.users[userID] = u
	return nil
}

// roles and permissions

func (m *memStore) NextRoleRank(ctx context.Context) (int, error) {
	defer m.guard()()
	rank := 0
	for _, r := range m.data.roles {
		rank = lo.Max([]int{rank, r.Rank})
	}
	return rank + 1, nil
}

func (m *memStore) CreateRole(ctx context.Context, role *models.Role) error {
	defer m.guard()()
	for _, r := range m.data.roles {
		if r.Slug == role.Slug || r.Name == role.Name || r.Rank == role.Rank {
			return apperr.Conflictf("role already exists")
		}
	}
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	m.data.roles[role.ID] = *role
	return nil
}

func (m *memStore) GetRoleByID(ctx context.Context, id string) (*models.Role, error) {
	defer m.guard()()
	r, ok := m.data.roles[id]
	if !ok {
		return nil, apperr.NotFoundf("role not found")
	}
	return &r, nil
}

func (m *memStore) ListRoles(ctx context.Context) ([]models.Role, error) {
	defer m.guard()()
	return lo.Values(m.data.roles), nil
}

func (m *memStore) UpdateRole(ctx context.Context, role *models.Role) error {
	defer m.guard()()
	m.data.roles[role.ID] = *role
	return nil
}

func (m *memStore) CreatePermission(ctx context.Context, perm *models.Permission) error {
	defer m.guard()()
	if m.permissionTaken(perm) {
		return apperr.Conflictf("permission already exists")
	}
	if perm.ID == "" {
		perm.ID = uuid.New().String()
	}
	m.data.perms[perm.ID] = *perm
	return nil
}

func (m *memStore) GetPermissionByID(ctx context.Context, id string) (*models.Permission, error) {
	defer m.guard()()
	p, ok := m.data.perms[id]
	if !ok {
		return nil, apperr.NotFoundf("permission not found")
	}
	return &p, nil
}

func (m *memStore) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	defer m.guard()()
	return lo.Values(m.data.perms), nil
}

func (m *memStore) UpdatePermission(ctx context.Context, perm *models.Permission) error {
	defer m.guard()()
	if m.permissionTaken(perm) {
		return apperr.Conflictf("permission already exists")
	}
	m.data.perms[perm.ID] = *perm
	return nil
}

// permissionTaken mirrors the table's UNIQUE(code) and UNIQUE(name), which cover soft
// deleted rows too
func (m *memStore) permissionTaken(perm *models.Permission) bool {
	for id, p := range m.data.perms {
		if id != perm.ID && (p.Code == perm.Code || p.Name == perm.Name) {
			return true
		}
	}
	return false
}

func (m *memStore) ActiveRoleIDs(ctx context.Context, ids []string) ([]string, error) {
	defer m.guard()()
	return lo.Filter(ids, func(id string, _ int) bool {
		r, ok := m.data.roles[id]
		return ok && !r.IsDeleted
	}), nil
}

func (m *memStore) ActivePermissionIDs(ctx context.Context, ids []string) ([]string, error) {
	defer m.guard()()
	return lo.Filter(ids, func(id string, _ int) bool {
		p, ok := m.data.perms[id]
		return ok && !p.IsDeleted
	}), nil
}

func setKeys(set map[string]bool) []string {
	keys := lo.Keys(set)
	sort.Strings(keys)
	return keys
}

func addToSet(sets map[string]map[string]bool, owner string, ids []string) {
	if sets[owner] == nil {
		sets[owner] = map[string]bool{}
	}
	for _, id := range ids {
		sets[owner][id] = true
	}
}

func removeFromSet(sets map[string]map[string]bool, owner string, ids []string) {
	for _, id := range ids {
		delete(sets[owner], id)
	}
}

func (m *memStore) RolePermissionIDs(ctx context.Context, roleID string) ([]string, error) {
	defer m.guard()()
	return setKeys(m.data.rolePerms[roleID]), nil
}

func (m *memStore) AddRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	defer m.guard()()
	addToSet(m.data.rolePerms, roleID, permissionIDs)
	return nil
}

func (m *memStore) RemoveRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	defer m.guard()()
	removeFromSet(m.data.rolePerms, roleID, permissionIDs)
	return nil
}

func (m *memStore) UserRoleIDs(ctx context.Context, userID string) ([]string, error) {
	defer m.guard()()
	return setKeys(m.data.userRoles[userID]), nil
}

func (m *memStore) AddUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	defer m.guard()()
	addToSet(m.data.userRoles, userID, roleIDs)
	return nil
}

func (m *memStore) RemoveUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	defer m.guard()()
	removeFromSet(m.data.userRoles, userID, roleIDs)
	return nil
}

func (m *memStore) ListUserRoleGrants(ctx context.Context, userID string) ([]models.UserRoleGrant, error) {
	defer m.guard()()
	grants := []models.UserRoleGrant{}
	for _, id := range setKeys(m.data.userRoles[userID]) {
		r, ok := m.data.roles[id]
		if !ok || r.IsDeleted {
			continue
		}
		grants = append(grants, models.UserRoleGrant{RoleID: r.ID, Slug: r.Slug, Name: r.Name, IsElevated: r.IsElevated})
	}
	return grants, nil
}

func (m *memStore) ListRolePermissionGrants(ctx context.Context, roleIDs []string) ([]models.RolePermissionGrant, error) {
	defer m.guard()()
	grants := []models.RolePermissionGrant{}
	for _, roleID := range roleIDs {
		for _, id := range setKeys(m.data.rolePerms[roleID]) {
			p, ok := m.data.perms[id]
			if !ok || p.IsDeleted {
				continue
			}
			grants = append(grants, models.RolePermissionGrant{RoleID: roleID, Code: p.Code})
		}
	}
	return grants, nil
}

func (m *memStore) CountRoleReferences(ctx context.Context, roleID string) (int, int, error) {
	defer m.guard()()
	users := 0
	for _, set := range m.data.userRoles {
		if set[roleID] {
			users++
		}
	}
	return users, len(m.data.rolePerms[roleID]), nil
}

func (m *memStore) CountPermissionReferences(ctx context.Context, permissionID string) (int, error) {
	defer m.guard()()
	n := 0
	for _, set := range m.data.rolePerms {
		if set[permissionID] {
			n++
		}
	}
	return n, nil
}

// catalog

func (m *memStore) CreateClient(ctx context.Context, client *models.Client) error {
	defer m.guard()()
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	m.data.clients[client.ID] = *client
	return nil
}

func (m *memStore) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	defer m.guard()()
	c, ok := m.data.clients[id]
	if !ok {
		return nil, apperr.NotFoundf("client not found")
	}
	return &c, nil
}

func (m *memStore) ListClients(ctx context.Context, scope models.AccessScope) ([]models.Client, error) {
	defer m.guard()()
	return lo.Filter(lo.Values(m.data.clients), func(c models.Client, _ int) bool {
		return scope.Covers(c.ID)
	}), nil
}

func (m *memStore) UpdateClient(ctx context.Context, client *models.Client) error {
	defer m.guard()()
	m.data.clients[client.ID] = *client
	return nil
}

func (m *memStore) CreateProduct(ctx context.Context, product *models.Product) error {
	defer m.guard()()
	for _, p := range m.data.products {
		if p.ClientID == product.ClientID && p.Name == product.Name {
			return apperr.Conflictf("product already exists")
		}
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	m.data.products[product.ID] = *product
	return nil
}

func (m *memStore) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	defer m.guard()()
	p, ok := m.data.products[id]
	if !ok {
		return nil, apperr.NotFoundf("product not found")
	}
	return &p, nil
}

func (m *memStore) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	defer m.guard()()
	products := []models.Product{}
	for _, id := range ids {
		if p, ok := m.data.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (m *memStore) ListProducts(ctx context.Context, scope models.AccessScope) ([]models.Product, error) {
	defer m.guard()()
	return lo.Filter(lo.Values(m.data.products), func(p models.Product, _ int) bool {
		return scope.Covers(p.ClientID)
	}), nil
}

func (m *memStore) ListActiveProductsByClient(ctx context.Context, clientID string) ([]models.Product, error) {
	defer m.guard()()
	return lo.Filter(lo.Values(m.data.products), func(p models.Product, _ int) bool {
		return p.ClientID == clientID && !p.IsDeleted
	}), nil
}

func (m *memStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	defer m.guard()()
	m.data.products[product.ID] = *product
	return nil
}

// orders

func (m *memStore) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	defer m.guard()()
	p, ok := m.data.products[productID]
	if !ok || p.Quantity < quantity {
		return false, nil
	}
	p.Quantity -= quantity
	m.data.products[productID] = p
	return true, nil
}

func (m *memStore) CreateOrder(ctx context.Context, order *models.Order) error {
	defer m.guard()()
	if order.Total != order.Subtotal+order.Shipping {
		return apperr.Conflictf("order total mismatch")
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = time.Now()
	m.data.orders[order.ID] = *order
	return nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	defer m.guard()()
	o, ok := m.data.orders[id]
	if !ok {
		return nil, apperr.NotFoundf("order not found")
	}
	return &o, nil
}

func (m *memStore) ListOrders(ctx context.Context, scope models.AccessScope) ([]models.Order, error) {
	defer m.guard()()
	return lo.Filter(lo.Values(m.data.orders), func(o models.Order, _ int) bool {
		return scope.Covers(o.ClientID)
	}), nil
}

func (m *memStore) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	defer m.guard()()
	return lo.Filter(lo.Values(m.data.orders), func(o models.Order, _ int) bool {
		return deref(o.UserID) == userID
	}), nil
}

func (m *memStore) MarkOrderPaid(ctx context.Context, id string, receipt models.PaymentReceipt, paidAt time.Time) (bool, error) {
	defer m.guard()()
	o, ok := m.data.orders[id]
	if !ok || o.IsPaid || o.Status == models.OrderStatusCancelled {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.Status = models.OrderStatusProcessing
	if receipt.Reference != "" {
		o.PaymentInfo.GatewayReference = receipt.Reference
	}
	if receipt.CardBrand != "" {
		o.PaymentInfo.CardBrand = receipt.CardBrand
	}
	if receipt.MaskedCardNumber != "" {
		o.PaymentInfo.MaskedCardNumber = receipt.MaskedCardNumber
	}
	m.data.orders[id] = o
	return true, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (bool, error) {
	defer m.guard()()
	o, ok := m.data.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if to == models.OrderStatusDelivered {
		o.IsDelivered = true
		o.DeliveredAt = &at
	}
	m.data.orders[id] = o
	return true, nil
}

func (m *memStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	defer m.guard()()
	_, ok := m.data.events[eventID]
	return ok, nil
}

func (m *memStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	defer m.guard()()
	m.data.events[eventID] = eventType
	return nil
}
