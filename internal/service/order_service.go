package service

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	repo        store.OrderRepository
	access      *AccessControl
	events      EventPublisher
	shippingFee int64
	now         func() time.Time
	logger      *zap.Logger
}

// NewOrderService creates a new order service. shippingFee is a flat fee in cents.
func NewOrderService(
	repo store.OrderRepository,
	access *AccessControl,
	events EventPublisher,
	shippingFee int64,
) *OrderService {
	return &OrderService{
		repo:        repo,
		access:      access,
		events:      events,
		shippingFee: shippingFee,
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

// CreateOrderInput represents a request to create an order. Prices are never taken
// from the caller.
type CreateOrderInput struct {
	ClientID      string               `json:"client_id" binding:"required"`
	UserID        string               `json:"-"`
	Items         []OrderItemInput     `json:"items" binding:"required,min=1"`
	RecipientInfo models.RecipientInfo `json:"recipient_info"`
	SenderInfo    *models.SenderInfo   `json:"sender_info,omitempty"`
	PaymentMethod string               `json:"payment_method" binding:"required"`
	OrderNotes    string               `json:"order_notes,omitempty"`
}

// OrderItemInput represents an item in an order
type OrderItemInput struct {
	ProductID string `json:"product_id"`
	Type      string `json:"type,omitempty"`
	Quantity  int    `json:"quantity"`
}

var paymentMethods = []string{models.PaymentOnline, models.PaymentBankTransfer, models.PaymentCOD}

var addressTypes = []string{models.AddressHome, models.AddressOffice, models.AddressOther}

func (in *CreateOrderInput) validate() error {
	fields := map[string]string{}

	if in.ClientID == "" {
		fields["client_id"] = "required"
	}
	if len(in.Items) == 0 {
		fields["items"] = "cart is empty"
	}
	for i, item := range in.Items {
		if item.ProductID == "" {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "required"
		}
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be at least 1"
		}
	}

	in.PaymentMethod = strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	if !lo.Contains(paymentMethods, in.PaymentMethod) {
		fields["payment_method"] = "must be one of " + strings.Join(paymentMethods, ", ")
	}

	r := &in.RecipientInfo
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Phone = strings.TrimSpace(r.Phone)
	r.AddressType = strings.ToUpper(strings.TrimSpace(r.AddressType))
	if r.AddressType == "" {
		r.AddressType = models.AddressHome
	}
	if r.CountryCode == "" {
		r.CountryCode = models.DefaultCountryCode
	}

	if r.FirstName == "" {
		fields["recipient_info.first_name"] = "required"
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		fields["recipient_info.email"] = "must be a valid email address"
	}
	if r.Address == "" {
		fields["recipient_info.address"] = "required"
	}
	if r.City == "" {
		fields["recipient_info.city"] = "required"
	}
	if r.Phone == "" {
		fields["recipient_info.phone"] = "required"
	}
	if !lo.Contains(addressTypes, r.AddressType) {
		fields["recipient_info.address_type"] = "must be one of " + strings.Join(addressTypes, ", ")
	}

	if len(fields) > 0 {
		return apperr.Validation("invalid order", fields)
	}
	return nil
}

// buildOrder validates the input and prices every line from the catalog
func (s *OrderService) buildOrder(ctx context.Context, repo store.OrderRepository, in *CreateOrderInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ids := lo.Uniq(lo.Map(in.Items, func(item OrderItemInput, _ int) string { return item.ProductID }))
	products, err := repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := lo.KeyBy(products, func(p models.Product) string { return p.ID })

	items := make(models.OrderItems, 0, len(in.Items))
	for _, line := range in.Items {
		product, ok := byID[line.ProductID]
		if !ok || product.IsDeleted || product.ClientID != in.ClientID {
			return nil, apperr.NotFoundf("product %s not found", line.ProductID)
		}
		variant, ok := product.PriceOf(line.Type)
		if !ok {
			return nil, apperr.Validation("invalid order", map[string]string{
				"items": fmt.Sprintf("product %s has no type %q", product.ID, line.Type),
			})
		}
		if product.MinOrder > 0 && line.Quantity < product.MinOrder {
			return nil, apperr.Validation("invalid order", map[string]string{
				"items": fmt.Sprintf("%s requires at least %d", product.Name, product.MinOrder),
			})
		}

		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Type:      variant.Type,
			Price:     variant.Price,
			Quantity:  line.Quantity,
		})
	}

	order := &models.Order{
		ClientID:      in.ClientID,
		UserID:        optional(in.UserID),
		CheckoutType:  models.CheckoutGuest,
		Items:         items,
		RecipientInfo: in.RecipientInfo,
		SenderInfo:    in.SenderInfo,
		PaymentInfo:   models.PaymentInfo{PaymentMethod: in.PaymentMethod},
		OrderNotes:    strings.TrimSpace(in.OrderNotes),
		Subtotal:      items.Subtotal(),
		Shipping:      s.shippingFee,
		Status:        models.OrderStatusPending,
	}
	if in.UserID != "" {
		order.CheckoutType = models.CheckoutSignup
	}
	order.Total = order.Subtotal + order.Shipping

	return order, nil
}

// CreatePendingOrder records an unpaid order awaiting gateway confirmation. Stock is
// neither checked nor taken until the payment is verified.
func (s *OrderService) CreatePendingOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreatePendingOrder")
	defer span.End()

	order, err := s.buildOrder(ctx, s.repo, &in)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_order").Inc()
		return nil, err
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, util.RecordError(span, fmt.Errorf("failed to create order: %w", err))
	}

	util.OrdersCreatedTotal.WithLabelValues(order.CheckoutType, "pending").Inc()
	util.WithTrace(ctx, s.logger).Info("Pending order created",
		zap.String("order_id", order.ID),
		zap.String("client_id", order.ClientID),
		zap.Int64("total", order.Total))

	s.publishCreated(ctx, order)
	return order, nil
}

// CreateOrder records an order settled outside the gateway (cash on delivery or bank
// transfer) and takes its stock in the same transaction. Only staff holding
// ORDER_UPDATE for the order's client may record one; ONLINE orders must go through
// CreatePendingOrder and a verified gateway notification.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if in.UserID == "" {
		return nil, apperr.Unauthorized("sign in to place a paid order")
	}
	if strings.EqualFold(strings.TrimSpace(in.PaymentMethod), models.PaymentOnline) {
		return nil, apperr.Validation("invalid order", map[string]string{
			"payment_method": "ONLINE orders must be paid through the gateway checkout",
		})
	}
	if _, err := s.access.Authorize(ctx, in.UserID, models.PermOrderUpdate); err != nil {
		return nil, err
	}
	scope, err := s.access.Scope(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(in.ClientID) {
		return nil, apperr.PermissionDenied("client is outside your scope")
	}

	var order *models.Order
	err = s.repo.Atomic(ctx, func(repo store.OrderRepository) error {
		var err error
		order, err = s.buildOrder(ctx, repo, &in)
		if err != nil {
			return err
		}

		paidAt := s.now()
		order.IsPaid = true
		order.PaidAt = &paidAt
		order.Status = models.OrderStatusProcessing

		if err := repo.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return s.decrementAll(ctx, repo, order)
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, util.RecordError(span, err)
	}

	util.OrdersCreatedTotal.WithLabelValues(order.CheckoutType, "paid").Inc()
	util.OrdersPaidTotal.Inc()
	util.WithTrace(ctx, s.logger).Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("client_id", order.ClientID),
		zap.Int64("total", order.Total))

	s.publishCreated(ctx, order)
	return order, nil
}

// VerifyPayment marks an order paid, records the receipt and takes its stock. Repeated
// calls for a paid order succeed without side effects, even once the order has been
// cancelled; applied reports whether this call did the work.
func (s *OrderService) VerifyPayment(ctx context.Context, orderID string, receipt models.PaymentReceipt) (order *models.Order, applied bool, err error) {
	ctx, span := util.StartSpanWith(ctx, "OrderService.VerifyPayment", "order_id", orderID)
	defer span.End()

	start := time.Now()
	defer func() {
		util.PaymentVerifyLatency.Observe(time.Since(start).Seconds())
	}()

	err = s.repo.Atomic(ctx, func(repo store.OrderRepository) error {
		current, err := repo.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if current.IsPaid {
			order = current
			return nil
		}
		if current.Status == models.OrderStatusCancelled {
			return apperr.Conflictf("order %s is cancelled", orderID)
		}

		applied, err = repo.MarkOrderPaid(ctx, orderID, receipt, s.now())
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		if !applied {
			order = current
			return nil
		}

		if err := s.decrementAll(ctx, repo, current); err != nil {
			return err
		}

		order, err = repo.GetOrderByID(ctx, orderID)
		return err
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, false, util.RecordError(span, err)
	}

	if !applied {
		util.WithTrace(ctx, s.logger).Info("Payment already verified", zap.String("order_id", orderID))
		return order, false, nil
	}

	util.OrdersPaidTotal.Inc()
	util.WithTrace(ctx, s.logger).Info("Payment verified",
		zap.String("order_id", order.ID),
		zap.String("reference", receipt.Reference))

	event := &models.OrderPaidEvent{
		BaseEvent:      newBaseEvent(models.EventTypeOrderPaid),
		OrderID:        order.ID,
		ClientID:       order.ClientID,
		Total:          order.Total,
		Reference:      receipt.Reference,
		RecipientEmail: order.RecipientInfo.Email,
		RecipientName:  order.RecipientInfo.FirstName,
	}
	if err := s.events.PublishOrderPaid(ctx, event); err != nil {
		util.WithTrace(ctx, s.logger).Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	return order, true, nil
}

// decrementAll takes stock for every line. Quantities are summed per product and
// applied in id order so concurrent verifications lock rows consistently.
func (s *OrderService) decrementAll(ctx context.Context, repo store.OrderRepository, order *models.Order) error {
	wanted := map[string]int{}
	for _, item := range order.Items {
		wanted[item.ProductID] += item.Quantity
	}
	ids := lo.Keys(wanted)
	sort.Strings(ids)

	for _, id := range ids {
		ok, err := repo.DecrementStock(ctx, id, wanted[id])
		if err != nil {
			return fmt.Errorf("failed to decrement stock for product %s: %w", id, err)
		}
		if !ok {
			util.StockDecrementFailed.Inc()
			util.WithTrace(ctx, s.logger).Warn("Insufficient stock",
				zap.String("order_id", order.ID),
				zap.String("product_id", id),
				zap.Int("quantity", wanted[id]))
			return apperr.Conflictf("insufficient stock for product %s", id)
		}
	}
	return nil
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order) {
	event := &models.OrderCreatedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeOrderCreated),
		OrderID:        order.ID,
		ClientID:       order.ClientID,
		UserID:         deref(order.UserID),
		CheckoutType:   order.CheckoutType,
		Total:          order.Total,
		RecipientEmail: order.RecipientInfo.Email,
		RecipientName:  order.RecipientInfo.FirstName,
		Items: lo.Map(order.Items, func(item models.OrderItem, _ int) models.OrderItemData {
			return models.OrderItemData{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.Price,
			}
		}),
	}

	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		util.WithTrace(ctx, s.logger).Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

// GetOrder returns an order to its buyer or to a caller whose scope covers its client
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if userID != "" && deref(order.UserID) == userID {
		return order, nil
	}

	scope, err := s.access.Scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(order.ClientID) {
		return nil, apperr.PermissionDenied("order is outside your scope")
	}
	return order, nil
}

// ListOrders returns the orders in the caller's scope
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	scope, err := s.access.Scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	if scope.Kind == models.ScopeNone {
		return []models.Order{}, nil
	}
	return s.repo.ListOrders(ctx, scope)
}

// ListUserOrders returns the caller's own orders
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// UpdateStatus moves an order along the fulfilment state machine
func (s *OrderService) UpdateStatus(ctx context.Context, userID, orderID string, to models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpanWith(ctx, "OrderService.UpdateStatus", "order_id", orderID)
	defer span.End()

	if !to.Valid() {
		return nil, apperr.Validation("invalid status", map[string]string{"status": "unknown status " + string(to)})
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	scope, err := s.access.Scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !scope.Covers(order.ClientID) {
		return nil, apperr.PermissionDenied("order is outside your scope")
	}

	if !order.Status.CanTransition(to) {
		return nil, apperr.Conflictf("cannot move order from %s to %s", order.Status, to)
	}

	ok, err := s.repo.UpdateOrderStatus(ctx, orderID, order.Status, to, s.now())
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	if !ok {
		return nil, apperr.Conflictf("order %s changed concurrently", orderID)
	}

	util.WithTrace(ctx, s.logger).Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(to)))

	return s.repo.GetOrderByID(ctx, orderID)
}

func failureReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "invalid_order"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindConflict:
		return "conflict"
	default:
		return "db_error"
	}
}
