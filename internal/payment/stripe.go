package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/utafrali/PackStore/internal/domain"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

type sessionAPI interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeVerifier reads Stripe Checkout sessions.
type StripeVerifier struct {
	sessions sessionAPI
}

// NewStripeVerifier creates a verifier for the given secret key. backends
// may be nil.
func NewStripeVerifier(apiKey string, backends *stripe.Backends) (*StripeVerifier, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(apiKey, backends)
	return &StripeVerifier{sessions: sc.CheckoutSessions}, nil
}

// VerifyPayment reports the session's payment status. Paid is true only for
// Stripe's "paid" status; "no_payment_required" is surfaced as not paid.
func (v *StripeVerifier) VerifyPayment(ctx context.Context, sessionID string) (domain.PaymentStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := v.sessions.Get(sessionID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return domain.PaymentStatus{}, apperrors.NotFound("payment session", sessionID)
		}
		return domain.PaymentStatus{}, fmt.Errorf("stripe: get checkout session: %w", errors.Join(apperrors.ErrUpstream, err))
	}

	return domain.PaymentStatus{
		Paid:   sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Status: string(sess.PaymentStatus),
	}, nil
}
