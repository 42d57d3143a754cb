package store

import (
	"context"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	query := `
		INSERT INTO orders (id, client_id, user_id, checkout_type, items, recipient_info, sender_info,
			payment_info, order_notes, subtotal, shipping, total, is_paid, paid_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.q, order, query,
		order.ID, order.ClientID, order.UserID, order.CheckoutType, order.Items, order.RecipientInfo,
		order.SenderInfo, order.PaymentInfo, order.OrderNotes, order.Subtotal, order.Shipping,
		order.Total, order.IsPaid, order.PaidAt, order.Status)
	return mapError(err, "order")
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, s.q, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "order")
	}
	return &order, nil
}

// ListOrders retrieves the orders visible in scope, newest first
func (s *Store) ListOrders(ctx context.Context, scope models.AccessScope) ([]models.Order, error) {
	orders := []models.Order{}
	var err error
	switch scope.Kind {
	case models.ScopeAll:
		err = sqlx.SelectContext(ctx, s.q, &orders, "SELECT * FROM orders ORDER BY created_at DESC")
	case models.ScopeClient:
		err = sqlx.SelectContext(ctx, s.q, &orders,
			"SELECT * FROM orders WHERE client_id = $1 ORDER BY created_at DESC", scope.ClientID)
	}
	return orders, err
}

// ListOrdersByUser retrieves orders for a user
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, s.q, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// MarkOrderPaid flips is_paid from false to true on an order that is not cancelled and
// merges the receipt into payment_info. It reports false when nothing changed, which
// makes payment verification idempotent.
func (s *Store) MarkOrderPaid(ctx context.Context, id string, receipt models.PaymentReceipt, paidAt time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE orders SET is_paid = TRUE, paid_at = $2, status = $3,
			payment_info = payment_info || $4::jsonb,
			updated_at = NOW()
		WHERE id = $1 AND is_paid = FALSE AND status <> $5`,
		id, paidAt, models.OrderStatusProcessing, receipt, models.OrderStatusCancelled)
	if err != nil {
		return false, mapError(err, "order")
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DecrementStock takes quantity units from a product only if that much is in stock
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE products SET quantity = quantity - $1, updated_at = NOW()
		WHERE id = $2 AND quantity >= $1`, quantity, productID)
	if err != nil {
		return false, mapError(err, "product")
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdateOrderStatus moves an order from one status to another. It reports false when
// the order is no longer in the expected status.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (bool, error) {
	delivered := to == models.OrderStatusDelivered
	res, err := s.q.ExecContext(ctx, `
		UPDATE orders SET status = $3,
			is_delivered = is_delivered OR $4,
			delivered_at = CASE WHEN $4 THEN $5 ELSE delivered_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to, delivered, at)
	if err != nil {
		return false, mapError(err, "order")
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.q, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
