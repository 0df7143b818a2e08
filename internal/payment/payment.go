// Package payment verifies checkout sessions with the payment processor.
package payment

import (
	"context"

	"github.com/utafrali/PackStore/internal/domain"
)

// Verifier confirms whether a checkout session has been paid.
type Verifier interface {
	VerifyPayment(ctx context.Context, sessionID string) (domain.PaymentStatus, error)
}
