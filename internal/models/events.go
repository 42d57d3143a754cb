package models

import "time"

// Event types
const (
	EventTypeOrderCreated    = "ORDER_CREATED"
	EventTypeOrderPaid       = "ORDER_PAID"
	EventTypePaymentRejected = "PAYMENT_REJECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type
func (e BaseEvent) Type() string {
	return e.EventType
}

// OrderCreatedEvent published when an order is persisted
type OrderCreatedEvent struct {
	BaseEvent
	OrderID        string          `json:"order_id"`
	ClientID       string          `json:"client_id"`
	UserID         string          `json:"user_id,omitempty"`
	CheckoutType   string          `json:"checkout_type"`
	Total          int64           `json:"total"`
	RecipientEmail string          `json:"recipient_email"`
	RecipientName  string          `json:"recipient_name"`
	Items          []OrderItemData `json:"items"`
}

// OrderPaidEvent published when a payment is verified and stock committed
type OrderPaidEvent struct {
	BaseEvent
	OrderID        string `json:"order_id"`
	ClientID       string `json:"client_id"`
	Total          int64  `json:"total"`
	Reference      string `json:"reference,omitempty"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
}

// PaymentRejectedEvent published when a gateway notification is refused
type PaymentRejectedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}
