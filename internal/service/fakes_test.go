package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/redisclient"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	created  []*models.OrderCreatedEvent
	paid     []*models.OrderPaidEvent
	rejected []*models.PaymentRejectedEvent
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return nil
}

func (p *recordingPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, event)
	return nil
}

func (p *recordingPublisher) PublishPaymentRejected(ctx context.Context, event *models.PaymentRejectedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = append(p.rejected, event)
	return nil
}

func (p *recordingPublisher) paidCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paid)
}

type memGuard struct {
	mu    sync.Mutex
	keys  map[string]interface{}
	locks map[string]string
}

func newMemGuard() *memGuard {
	return &memGuard{keys: map[string]interface{}{}, locks: map[string]string{}}
}

func (g *memGuard) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.keys[key]
	return ok, nil
}

func (g *memGuard) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[key] = value
	return nil
}

func (g *memGuard) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.locks[lockKey]; held {
		return "", nil
	}
	token := uuid.New().String()
	g.locks[lockKey] = token
	return token, nil
}

func (g *memGuard) ReleaseLock(ctx context.Context, lockKey, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locks[lockKey] == token {
		delete(g.locks, lockKey)
	}
	return nil
}

// memCarts versions every key so MergeCart can detect writes made while the fold ran,
// the way WATCH does. beforeCommit runs once per attempt between the fold and the check.
type memCarts struct {
	mu           sync.Mutex
	carts        map[string]models.Cart
	ttls         map[string]time.Duration
	versions     map[string]int
	beforeCommit func()
}

func newMemCarts() *memCarts {
	return &memCarts{carts: map[string]models.Cart{}, ttls: map[string]time.Duration{}, versions: map[string]int{}}
}

func (c *memCarts) GetCart(ctx context.Context, key string) (*models.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key), nil
}

func (c *memCarts) get(key string) *models.Cart {
	cart, ok := c.carts[key]
	if !ok {
		return nil
	}
	cart.Items = append([]models.CartItem(nil), cart.Items...)
	return &cart
}

func (c *memCarts) SaveCart(ctx context.Context, key string, cart *models.Cart, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[key] = *cart
	c.ttls[key] = ttl
	c.versions[key]++
	return nil
}

func (c *memCarts) DeleteCart(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, key)
	c.versions[key]++
	return nil
}

func (c *memCarts) MergeCart(ctx context.Context, fromKey, toKey string, ttl time.Duration, fold redisclient.CartFold) (*models.Cart, error) {
	for attempt := 0; attempt < 5; attempt++ {
		c.mu.Lock()
		from, to := c.get(fromKey), c.get(toKey)
		seenFrom, seenTo := c.versions[fromKey], c.versions[toKey]
		c.mu.Unlock()

		merged, err := fold(from, to)
		if err != nil || merged == nil {
			return merged, err
		}
		if c.beforeCommit != nil {
			c.beforeCommit()
		}

		c.mu.Lock()
		if c.versions[fromKey] != seenFrom || c.versions[toKey] != seenTo {
			c.mu.Unlock()
			continue
		}
		c.carts[toKey] = *merged
		c.ttls[toKey] = ttl
		c.versions[toKey]++
		delete(c.carts, fromKey)
		c.versions[fromKey]++
		c.mu.Unlock()
		return merged, nil
	}
	return nil, redisclient.ErrCartContended
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: message})
	return nil
}

var errSMTPDown = errors.New("smtp: connection refused")

// fixture is a seeded tenant: one client with two products, an administrator, a
// client operator and a plain customer.
type fixture struct {
	store     *memStore
	access    *AccessControl
	events    *recordingPublisher
	clientID  string
	otherID   string
	salmonID  string
	prawnID   string
	adminID   string
	operator  string
	customer  string
	viewPerm  string
	orderPerm string

	clientRoleID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := newMemStore()

	f := &fixture{store: s, events: &recordingPublisher{}}
	f.access = NewAccessControl(memRBAC{s})

	client := &models.Client{Name: "Ocean Fresh", Code: "OCEAN_FRESH", Email: "shop@oceanfresh.lk"}
	require.NoError(t, s.CreateClient(ctx, client))
	f.clientID = client.ID

	other := &models.Client{Name: "Harbour Catch", Code: "HARBOUR_CATCH", Email: "hi@harbour.lk"}
	require.NoError(t, s.CreateClient(ctx, other))
	f.otherID = other.ID

	salmon := &models.Product{
		ClientID: f.clientID, Name: "Salmon", MinOrder: 1, Quantity: 10,
		Types: models.ProductVariants{{Type: "whole", Price: 250000}, {Type: "fillet", Price: 320000}},
	}
	require.NoError(t, s.CreateProduct(ctx, salmon))
	f.salmonID = salmon.ID

	prawn := &models.Product{
		ClientID: f.clientID, Name: "Tiger Prawn", MinOrder: 1, Quantity: 1,
		Types: models.ProductVariants{{Type: "kg", Price: 180000}},
	}
	require.NoError(t, s.CreateProduct(ctx, prawn))
	f.prawnID = prawn.ID

	view := &models.Permission{Code: models.PermProductView, Name: "Product View", Type: "PRODUCT"}
	require.NoError(t, s.CreatePermission(ctx, view))
	f.viewPerm = view.ID
	orders := &models.Permission{Code: models.PermOrderView, Name: "Order View", Type: "ORDER"}
	require.NoError(t, s.CreatePermission(ctx, orders))
	f.orderPerm = orders.ID

	admin := &models.Role{Slug: models.RoleAdmin, Name: "Admin", Rank: 1, IsElevated: true}
	require.NoError(t, s.CreateRole(ctx, admin))
	clientRole := &models.Role{Slug: models.RoleClient, Name: "Client", Rank: 2}
	require.NoError(t, s.CreateRole(ctx, clientRole))
	require.NoError(t, s.AddRolePermissions(ctx, clientRole.ID, []string{view.ID, orders.ID}))
	f.clientRoleID = clientRole.ID

	f.adminID = f.addUser(t, "admin@example.com", admin.ID, nil)
	f.operator = f.addUser(t, "ops@oceanfresh.lk", clientRole.ID, &f.clientID)
	f.customer = f.addUser(t, "buyer@example.com", "", nil)

	return f
}

func (f *fixture) addUser(t *testing.T, email, roleID string, clientID *string) string {
	t.Helper()
	ctx := context.Background()
	u := &models.User{FirstName: "Test", Email: email, Username: email, ClientID: clientID}
	require.NoError(t, f.store.CreateUser(ctx, u))
	if roleID != "" {
		require.NoError(t, f.store.AddUserRoles(ctx, u.ID, []string{roleID}))
	}
	return u.ID
}

func (f *fixture) orders(shipping int64) *OrderService {
	return NewOrderService(memOrders{f.store}, f.access, f.events, shipping)
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.GetProductByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Quantity
}

func validRecipient() models.RecipientInfo {
	return models.RecipientInfo{
		FirstName: "Nimal",
		Email:     "nimal@example.com",
		Address:   "12 Galle Road",
		City:      "Colombo",
		Phone:     "771234567",
	}
}
