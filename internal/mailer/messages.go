package mailer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Message is a rendered subject and body
type Message struct {
	Subject string
	Body    string
}

// Credentials is sent when an account is created or its password changes
func Credentials(name, email, password string) Message {
	return Message{
		Subject: "Your account details",
		Body: fmt.Sprintf("Hi %s,\n\nYour account is ready.\n\nEmail: %s\nPassword: %s\n\nPlease change your password after signing in.\n",
			name, email, password),
	}
}

// OrderReceived is sent to the recipient when an order is placed
func OrderReceived(name, orderID string, total int64, lines []string) Message {
	return Message{
		Subject: fmt.Sprintf("Order %s received", orderID),
		Body: fmt.Sprintf("Hi %s,\n\nWe received your order %s.\n\n%s\nTotal: %s\n",
			name, orderID, strings.Join(lines, "\n"), FormatCents(total)),
	}
}

// PaymentConfirmed is sent once the payment of an order is verified
func PaymentConfirmed(name, orderID string, total int64) Message {
	return Message{
		Subject: fmt.Sprintf("Payment confirmed for order %s", orderID),
		Body: fmt.Sprintf("Hi %s,\n\nYour payment of %s for order %s was confirmed. We are preparing your order.\n",
			name, FormatCents(total), orderID),
	}
}

// FormatCents renders minor units as a two-decimal amount
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
