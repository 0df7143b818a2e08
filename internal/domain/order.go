package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the read-only record written asynchronously by the payment
// webhook and referenced by payment session until it exists.
type Order struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	CustomerID string          `json:"customer_id,omitempty"`
	Status     string          `json:"status"`
	Email      string          `json:"email,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PaymentStatus is the processor's view of a checkout session.
type PaymentStatus struct {
	Paid   bool   `json:"paid"`
	Status string `json:"status"`
}
