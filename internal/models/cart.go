package models

import "time"

// Cart is a per-client basket kept in Redis, owned by a user or a guest session
type Cart struct {
	ClientID  string     `json:"client_id"`
	UserID    string     `json:"user_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ProductID string    `json:"product_id"`
	Type      string    `json:"type,omitempty"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// IsGuest reports whether the cart belongs to an anonymous session
func (c *Cart) IsGuest() bool {
	return c.UserID == ""
}

// Find returns the index of the line for productID/variant, or -1
func (c *Cart) Find(productID, variant string) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.Type == variant {
			return i
		}
	}
	return -1
}

// Total sums price x quantity over every line
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}
