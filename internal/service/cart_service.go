package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/redisclient"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// CartOwner identifies a cart: one client plus either a user or a guest session
type CartOwner struct {
	ClientID  string
	UserID    string
	SessionID string
}

func (o CartOwner) validate() error {
	fields := map[string]string{}
	if o.ClientID == "" {
		fields["client_id"] = "required"
	}
	if o.UserID == "" && o.SessionID == "" {
		fields["session_id"] = "a user or guest session is required"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid cart owner", fields)
	}
	return nil
}

func (o CartOwner) key() string {
	return redisclient.CartKey(o.ClientID, o.UserID, o.SessionID)
}

// CartItemInput adds or updates one cart line
type CartItemInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Type      string `json:"type,omitempty"`
	Quantity  int    `json:"quantity"`
}

// CartService keeps per-client baskets in Redis
type CartService struct {
	carts    CartStore
	catalog  store.CatalogRepository
	guestTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewCartService creates a new cart service. Guest carts expire after guestTTL.
func NewCartService(carts CartStore, catalog store.CatalogRepository, guestTTL time.Duration) *CartService {
	return &CartService{
		carts:    carts,
		catalog:  catalog,
		guestTTL: guestTTL,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// Get returns the owner's cart, empty when none is stored
func (s *CartService) Get(ctx context.Context, owner CartOwner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	return s.load(ctx, owner)
}

func (s *CartService) load(ctx context.Context, owner CartOwner) (*models.Cart, error) {
	cart, err := s.carts.GetCart(ctx, owner.key())
	if err != nil {
		return nil, apperr.Unavailable("cart store unavailable", err)
	}
	if cart == nil {
		cart = &models.Cart{
			ClientID:  owner.ClientID,
			UserID:    owner.UserID,
			SessionID: owner.SessionID,
			Items:     []models.CartItem{},
		}
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, owner CartOwner, cart *models.Cart) error {
	cart.UpdatedAt = s.now()
	if err := s.carts.SaveCart(ctx, owner.key(), cart, s.ttl(owner)); err != nil {
		return apperr.Unavailable("cart store unavailable", err)
	}
	return nil
}

func (s *CartService) ttl(owner CartOwner) time.Duration {
	if owner.UserID != "" {
		return 0
	}
	return s.guestTTL
}

// product loads a sellable product of the owner's client with enough stock for quantity
func (s *CartService) product(ctx context.Context, clientID, productID string, quantity int) (*models.Product, error) {
	product, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.IsDeleted || product.ClientID != clientID {
		return nil, apperr.NotFoundf("product %s not found", productID)
	}
	if product.Quantity < quantity {
		return nil, apperr.Conflictf("only %d of %s left in stock", product.Quantity, product.Name)
	}
	return product, nil
}

// AddItem adds a product line, merging with an existing line of the same type
func (s *CartService) AddItem(ctx context.Context, owner CartOwner, in CartItemInput) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if in.Quantity < 1 {
		return nil, apperr.Validation("invalid cart item", map[string]string{"quantity": "must be at least 1"})
	}

	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	quantity := in.Quantity
	idx := cart.Find(in.ProductID, in.Type)
	if idx >= 0 {
		quantity += cart.Items[idx].Quantity
	}

	product, err := s.product(ctx, owner.ClientID, in.ProductID, quantity)
	if err != nil {
		return nil, err
	}
	variant, ok := product.PriceOf(in.Type)
	if !ok {
		return nil, apperr.Validation("invalid cart item", map[string]string{"type": fmt.Sprintf("unknown type %q", in.Type)})
	}

	if idx >= 0 {
		cart.Items[idx].Quantity = quantity
		cart.Items[idx].Price = variant.Price
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: product.ID,
			Type:      in.Type,
			Price:     variant.Price,
			Quantity:  quantity,
			AddedAt:   s.now(),
		})
	}

	if err := s.save(ctx, owner, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateItem sets the quantity of a line. A quantity of zero or less removes it.
func (s *CartService) UpdateItem(ctx context.Context, owner CartOwner, in CartItemInput) (*models.Cart, error) {
	if in.Quantity <= 0 {
		return s.RemoveItem(ctx, owner, in.ProductID, in.Type)
	}
	if err := owner.validate(); err != nil {
		return nil, err
	}

	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	idx := cart.Find(in.ProductID, in.Type)
	if idx < 0 {
		return nil, apperr.NotFoundf("product %s is not in the cart", in.ProductID)
	}

	if _, err := s.product(ctx, owner.ClientID, in.ProductID, in.Quantity); err != nil {
		return nil, err
	}
	cart.Items[idx].Quantity = in.Quantity

	if err := s.save(ctx, owner, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem drops a line from the cart
func (s *CartService) RemoveItem(ctx context.Context, owner CartOwner, productID, variant string) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	idx := cart.Find(productID, variant)
	if idx < 0 {
		return nil, apperr.NotFoundf("product %s is not in the cart", productID)
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	if err := s.save(ctx, owner, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear deletes the cart
func (s *CartService) Clear(ctx context.Context, owner CartOwner) error {
	if err := owner.validate(); err != nil {
		return err
	}
	if err := s.carts.DeleteCart(ctx, owner.key()); err != nil {
		return apperr.Unavailable("cart store unavailable", err)
	}
	return nil
}

// Merge folds a guest session cart into the user's cart after sign in. Quantities of
// matching lines are summed and capped at current stock, lines whose product is gone or
// sold out are dropped, and the guest cart is removed. The fold runs against the stored
// carts inside one optimistic transaction, so concurrent edits are never lost.
func (s *CartService) Merge(ctx context.Context, clientID, userID, sessionID string) (*models.Cart, error) {
	guest := CartOwner{ClientID: clientID, SessionID: sessionID}
	user := CartOwner{ClientID: clientID, UserID: userID}
	if err := user.validate(); err != nil {
		return nil, err
	}
	if userID == "" || sessionID == "" {
		return nil, apperr.Validation("invalid cart merge", map[string]string{"session_id": "user and session are required"})
	}

	stock := map[string]int{}
	fold := func(guestCart, userCart *models.Cart) (*models.Cart, error) {
		if guestCart == nil || len(guestCart.Items) == 0 {
			return nil, nil
		}
		merged := &models.Cart{ClientID: clientID, UserID: userID, Items: []models.CartItem{}}
		if userCart != nil {
			merged.Items = append(merged.Items, userCart.Items...)
		}
		for _, item := range guestCart.Items {
			if idx := merged.Find(item.ProductID, item.Type); idx >= 0 {
				merged.Items[idx].Quantity += item.Quantity
				continue
			}
			merged.Items = append(merged.Items, item)
		}

		kept := merged.Items[:0]
		for _, item := range merged.Items {
			left, err := s.stockOf(ctx, clientID, item.ProductID, stock)
			if err != nil {
				return nil, err
			}
			if left <= 0 {
				continue
			}
			item.Quantity = lo.Min([]int{item.Quantity, left})
			kept = append(kept, item)
		}
		merged.Items = kept
		merged.UpdatedAt = s.now()
		return merged, nil
	}

	merged, err := s.carts.MergeCart(ctx, guest.key(), user.key(), s.ttl(user), fold)
	var appErr *apperr.Error
	switch {
	case errors.Is(err, redisclient.ErrCartContended):
		return nil, apperr.Conflictf("cart changed while merging, try again").WithCause(err)
	case errors.As(err, &appErr):
		return nil, err
	case err != nil:
		return nil, apperr.Unavailable("cart store unavailable", err)
	}
	if merged == nil {
		return s.load(ctx, user)
	}

	s.logger.Info("Guest cart merged",
		zap.String("client_id", clientID),
		zap.String("user_id", userID),
		zap.Int("lines", len(merged.Items)))
	return merged, nil
}

// stockOf returns what can still be bought of a product of the client, zero when it is
// gone. Lookups are cached across retries of one merge.
func (s *CartService) stockOf(ctx context.Context, clientID, productID string, cache map[string]int) (int, error) {
	if n, ok := cache[productID]; ok {
		return n, nil
	}
	product, err := s.product(ctx, clientID, productID, 0)
	switch {
	case apperr.KindOf(err) == apperr.KindNotFound:
		cache[productID] = 0
	case err != nil:
		return 0, err
	default:
		cache[productID] = product.Quantity
	}
	return cache[productID], nil
}

// ToOrderItems turns the cart into checkout lines. Prices are re-derived at checkout.
func ToOrderItems(cart *models.Cart) []OrderItemInput {
	return lo.Map(cart.Items, func(item models.CartItem, _ int) OrderItemInput {
		return OrderItemInput{ProductID: item.ProductID, Type: item.Type, Quantity: item.Quantity}
	})
}
