package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusReturned   OrderStatus = "RETURNED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusReturned},
	OrderStatusDelivered:  {OrderStatusReturned},
}

// CanTransition reports whether the order state machine allows s -> to
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusReturned, OrderStatusCancelled:
		return true
	}
	return false
}

// Checkout types
const (
	CheckoutGuest  = "GUEST"
	CheckoutSignup = "SIGNUP"
)

// Payment methods
const (
	PaymentOnline       = "ONLINE"
	PaymentBankTransfer = "BANK_TRANSFER"
	PaymentCOD          = "COD"
)

// Address types
const (
	AddressHome   = "HOME"
	AddressOffice = "OFFICE"
	AddressOther  = "OTHER"
)

const DefaultCountryCode = "+94"

// Order is a purchase against one client. Total is always Subtotal + Shipping.
type Order struct {
	ID            string        `db:"id" json:"id"`
	ClientID      string        `db:"client_id" json:"client_id"`
	UserID        *string       `db:"user_id" json:"user_id,omitempty"`
	CheckoutType  string        `db:"checkout_type" json:"checkout_type"`
	Items         OrderItems    `db:"items" json:"items"`
	RecipientInfo RecipientInfo `db:"recipient_info" json:"recipient_info"`
	SenderInfo    *SenderInfo   `db:"sender_info" json:"sender_info,omitempty"`
	PaymentInfo   PaymentInfo   `db:"payment_info" json:"payment_info"`
	OrderNotes    string        `db:"order_notes" json:"order_notes,omitempty"`
	Subtotal      int64         `db:"subtotal" json:"subtotal"`
	Shipping      int64         `db:"shipping" json:"shipping"`
	Total         int64         `db:"total" json:"total"`
	IsPaid        bool          `db:"is_paid" json:"is_paid"`
	PaidAt        *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	Status        OrderStatus   `db:"status" json:"status"`
	IsDelivered   bool          `db:"is_delivered" json:"is_delivered"`
	DeliveredAt   *time.Time    `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// IsGuest reports whether the order was placed without an account
func (o *Order) IsGuest() bool {
	return o.UserID == nil
}

// OrderItem is a snapshot of a product line at order time. Price is in cents.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// LineTotal returns price x quantity
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

type OrderItems []OrderItem

// Subtotal sums every line total
func (items OrderItems) Subtotal() int64 {
	var total int64
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}

type RecipientInfo struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	City        string `json:"city"`
	AddressType string `json:"address_type"`
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`
}

type SenderInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type PaymentInfo struct {
	PaymentMethod    string `json:"payment_method"`
	GatewayReference string `json:"gateway_reference,omitempty"`
	MaskedCardNumber string `json:"masked_card_number,omitempty"`
	CardBrand        string `json:"card_brand,omitempty"`
	BankReceiptURL   string `json:"bank_receipt_url,omitempty"`
	CashReceived     int64  `json:"cash_received,omitempty"`
}

// JSONB column mapping

func (v ProductVariants) Value() (driver.Value, error) { return jsonValue(v) }
func (v *ProductVariants) Scan(src interface{}) error  { return scanJSON(src, v) }
func (v OrderItems) Value() (driver.Value, error)      { return jsonValue(v) }
func (v *OrderItems) Scan(src interface{}) error       { return scanJSON(src, v) }
func (v RecipientInfo) Value() (driver.Value, error)   { return jsonValue(v) }
func (v *RecipientInfo) Scan(src interface{}) error    { return scanJSON(src, v) }
func (v SenderInfo) Value() (driver.Value, error)      { return jsonValue(v) }
func (v *SenderInfo) Scan(src interface{}) error       { return scanJSON(src, v) }
func (v PaymentInfo) Value() (driver.Value, error)     { return jsonValue(v) }
func (v *PaymentInfo) Scan(src interface{}) error      { return scanJSON(src, v) }

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func scanJSON(src interface{}, dst interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
