package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/internal/payment"
	"github.com/utafrali/PackStore/internal/poller"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// stubOrders returns the order once more than `after` lookups were made.
type stubOrders struct {
	after int32
	calls atomic.Int32
}

func (s *stubOrders) GetOrderBySession(_ context.Context, sessionID string) (*domain.Order, error) {
	if s.calls.Add(1) <= s.after {
		return nil, apperrors.NotFound("order", sessionID)
	}
	return &domain.Order{ID: "ord-1", SessionID: sessionID, Status: "paid", Total: dec("167.18"), Currency: "GBP"}, nil
}

func fastPoll() poller.Config {
	return poller.Config{MaxAttempts: 10, Interval: time.Millisecond, Deadline: 30 * time.Second}
}

func newCheckoutFixture(orders poller.OrderLookup, payments poller.PaymentVerifier) (*fixture, *CheckoutService) {
	f := newFixture()
	svc := NewCheckoutService(payments, orders, f.svc, f.events, fastPoll(), time.Minute, newTestLogger())
	return f, svc
}

func waitTerminal(t *testing.T, svc *CheckoutService, actor domain.ActorKey, id string) *PollView {
	t.Helper()
	var v *PollView
	require.Eventually(t, func() bool {
		var err error
		v, err = svc.Status(context.Background(), actor, id)
		return err == nil && v.State.Terminal()
	}, 5*time.Second, 2*time.Millisecond)
	return v
}

func TestStartConfirmation_FoundClearsCart(t *testing.T) {
	orders := &stubOrders{after: 5}
	f, svc := newCheckoutFixture(orders, payment.NewMockVerifier())
	defer svc.Close()
	addBoxes(t, f, customer, 10)

	materialized := make(chan struct{})
	f.events.On("PublishCartCleared", mock.Anything, customer).Return(nil).Once()
	f.events.On("PublishOrderMaterialized", mock.Anything, customer, mock.AnythingOfType("*domain.Order"), 6).
		Run(func(mock.Arguments) { close(materialized) }).
		Return(nil).Once()

	v, err := svc.StartConfirmation(context.Background(), customer, "cs_test_1")
	require.NoError(t, err)
	require.NotEmpty(t, v.ID)

	done := waitTerminal(t, svc, customer, v.ID)
	assert.Equal(t, poller.StateFound, done.State)
	assert.Equal(t, 6, done.Attempt)
	require.NotNil(t, done.Order)
	assert.Equal(t, "ord-1", done.Order.ID)

	select {
	case <-materialized:
	case <-time.After(5 * time.Second):
		t.Fatal("order materialized event not published")
	}
	assert.False(t, f.store.has(customer))
	f.events.AssertExpectations(t)
}

func TestStartConfirmation_ReusesRunningPoll(t *testing.T) {
	orders := &stubOrders{after: 1000}
	_, svc := newCheckoutFixture(orders, payment.NewMockVerifier())
	svc.cfg = poller.Config{MaxAttempts: 10, Interval: time.Hour, Deadline: 2 * time.Hour}
	defer svc.Close()

	first, err := svc.StartConfirmation(context.Background(), customer, "cs_test_1")
	require.NoError(t, err)
	second, err := svc.StartConfirmation(context.Background(), customer, "cs_test_1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestStartConfirmation_NotPaid(t *testing.T) {
	payments := payment.NewMockVerifier()
	payments.Set("cs_test_1", domain.PaymentStatus{Paid: false, Status: "unpaid"})
	_, svc := newCheckoutFixture(&stubOrders{}, payments)
	defer svc.Close()

	v, err := svc.StartConfirmation(context.Background(), customer, "cs_test_1")
	require.NoError(t, err)

	done := waitTerminal(t, svc, customer, v.ID)
	assert.Equal(t, poller.StateError, done.State)
	assert.Equal(t, "unpaid", done.PaymentStatus)
}

func TestStartConfirmation_MissingToken(t *testing.T) {
	_, svc := newCheckoutFixture(&stubOrders{}, payment.NewMockVerifier())
	defer svc.Close()

	v, err := svc.StartConfirmation(context.Background(), anon, "")
	require.NoError(t, err)

	done := waitTerminal(t, svc, anon, v.ID)
	assert.Equal(t, poller.StateError, done.State)
}

func TestStatus_OtherActorCannotSeePoll(t *testing.T) {
	_, svc := newCheckoutFixture(&stubOrders{}, payment.NewMockVerifier())
	defer svc.Close()

	v, err := svc.StartConfirmation(context.Background(), customer, "cs_test_1")
	require.NoError(t, err)

	_, err = svc.Status(context.Background(), domain.Customer("user-2"), v.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Status(context.Background(), customer, "unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCancel(t *testing.T) {
	orders := &stubOrders{after: 1000}
	_, svc := newCheckoutFixture(orders, payment.NewMockVerifier())
	svc.cfg = poller.Config{MaxAttempts: 10, Interval: time.Hour, Deadline: 2 * time.Hour}
	defer svc.Close()

	v, err := svc.StartConfirmation(context.Background(), customer, "cs_test_1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return orders.calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, svc.Cancel(context.Background(), customer, v.ID))

	s, err := svc.Status(context.Background(), customer, v.ID)
	require.NoError(t, err)
	assert.True(t, s.Cancelled)
	assert.Equal(t, poller.StatePollingForOrder, s.State)

	again, err := svc.StartConfirmation(context.Background(), customer, "cs_test_1")
	require.NoError(t, err)
	assert.NotEqual(t, v.ID, again.ID)
}

func TestSweep(t *testing.T) {
	_, svc := newCheckoutFixture(&stubOrders{}, payment.NewMockVerifier())
	defer svc.Close()

	v, err := svc.StartConfirmation(context.Background(), anon, "")
	require.NoError(t, err)
	waitTerminal(t, svc, anon, v.ID)

	assert.Zero(t, svc.Sweep(time.Now()))
	assert.Equal(t, 1, svc.Sweep(time.Now().Add(2*time.Minute)))

	_, err = svc.Status(context.Background(), anon, v.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOrderBySession(t *testing.T) {
	_, svc := newCheckoutFixture(&stubOrders{}, payment.NewMockVerifier())
	defer svc.Close()

	o, err := svc.GetOrderBySession(context.Background(), domain.AnonymousSession("s-1"), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", o.ID)

	_, err = svc.GetOrderBySession(context.Background(), domain.AnonymousSession("s-1"), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.GetOrderBySession(context.Background(), domain.ActorKey{}, "cs_test_1")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

type fixedOrder struct {
	order domain.Order
}

func (f fixedOrder) GetOrderBySession(context.Context, string) (*domain.Order, error) {
	o := f.order
	return &o, nil
}

func TestGetOrderBySession_Ownership(t *testing.T) {
	customerOrder := fixedOrder{order: domain.Order{ID: "ord-c", SessionID: "cs_1", CustomerID: "cust-1", Email: "a@example.com"}}
	_, svc := newCheckoutFixture(customerOrder, payment.NewMockVerifier())
	defer svc.Close()

	o, err := svc.GetOrderBySession(context.Background(), domain.Customer("cust-1"), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", o.Email)

	_, err = svc.GetOrderBySession(context.Background(), domain.Customer("cust-2"), "cs_1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.GetOrderBySession(context.Background(), domain.AnonymousSession("cust-1"), "cs_1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOrderBySession_GuestOrderHidesEmail(t *testing.T) {
	guestOrder := fixedOrder{order: domain.Order{ID: "ord-g", SessionID: "cs_2", Email: "guest@example.com"}}
	_, svc := newCheckoutFixture(guestOrder, payment.NewMockVerifier())
	defer svc.Close()

	o, err := svc.GetOrderBySession(context.Background(), domain.AnonymousSession("s-9"), "cs_2")
	require.NoError(t, err)
	assert.Equal(t, "ord-g", o.ID)
	assert.Empty(t, o.Email)
}

func TestClose_StopsRunningPolls(t *testing.T) {
	orders := &stubOrders{after: 1000}
	_, svc := newCheckoutFixture(orders, payment.NewMockVerifier())
	svc.cfg = poller.Config{MaxAttempts: 10, Interval: time.Hour, Deadline: 2 * time.Hour}

	v, err := svc.StartConfirmation(context.Background(), customer, "cs_test_1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return orders.calls.Load() == 1 }, time.Second, time.Millisecond)

	svc.Close()

	e, err := svc.entry(customer, v.ID)
	require.NoError(t, err)
	select {
	case <-e.handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poll still running after Close")
	}
}
