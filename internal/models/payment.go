package models

import (
	"database/sql/driver"
	"strings"
)

// PayHere status code for a successful payment
const PaymentStatusSuccess = "2"

// PaymentStart is returned to the storefront before redirecting to the gateway
type PaymentStart struct {
	Hash       string `json:"hash"`
	MerchantID string `json:"merchant_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

// PaymentNotification is the gateway's server-to-server callback
type PaymentNotification struct {
	MerchantID      string `form:"merchant_id" json:"merchant_id"`
	OrderID         string `form:"order_id" json:"order_id"`
	PaymentID       string `form:"payment_id" json:"payment_id"`
	PayhereAmount   string `form:"payhere_amount" json:"payhere_amount"`
	PayhereCurrency string `form:"payhere_currency" json:"payhere_currency"`
	StatusCode      string `form:"status_code" json:"status_code"`
	MD5Sig          string `form:"md5sig" json:"md5sig"`
	Method          string `form:"method" json:"method"`
	CardHolderName  string `form:"card_holder_name" json:"card_holder_name"`
	CardNo          string `form:"card_no" json:"card_no"`
}

// Missing lists the required fields that are empty
func (n *PaymentNotification) Missing() []string {
	var missing []string
	required := map[string]string{
		"merchant_id":      n.MerchantID,
		"order_id":         n.OrderID,
		"payhere_amount":   n.PayhereAmount,
		"payhere_currency": n.PayhereCurrency,
		"status_code":      n.StatusCode,
		"md5sig":           n.MD5Sig,
	}
	for _, field := range []string{"merchant_id", "order_id", "payhere_amount", "payhere_currency", "status_code", "md5sig"} {
		if required[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// PaymentReceipt is the gateway detail stored on an order once its payment is verified.
// Empty fields leave the stored payment info untouched.
type PaymentReceipt struct {
	Reference        string `json:"gateway_reference,omitempty"`
	CardBrand        string `json:"card_brand,omitempty"`
	MaskedCardNumber string `json:"masked_card_number,omitempty"`
}

// Receipt extracts what is kept from a notification. Only the last four card digits
// survive, whatever the gateway sent.
func (n *PaymentNotification) Receipt() PaymentReceipt {
	return PaymentReceipt{
		Reference:        n.PaymentID,
		CardBrand:        strings.ToUpper(strings.TrimSpace(n.Method)),
		MaskedCardNumber: MaskCardNumber(n.CardNo),
	}
}

// MaskCardNumber keeps the last four digits and replaces everything else with '*'
func MaskCardNumber(card string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, card)
	if len(digits) < 4 {
		return ""
	}
	return strings.Repeat("*", 12) + digits[len(digits)-4:]
}

func (v PaymentReceipt) Value() (driver.Value, error) { return jsonValue(v) }
