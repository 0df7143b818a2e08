package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/internal/poller"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// DefaultPollRetention is how long a finished poll stays queryable.
const DefaultPollRetention = 5 * time.Minute

// OrderEvents publishes order materialization.
type OrderEvents interface {
	PublishOrderMaterialized(ctx context.Context, actor domain.ActorKey, o *domain.Order, attempts int) error
}

// PollView is the caller-facing status of a confirmation poll.
type PollView struct {
	ID string `json:"poll_id"`
	poller.Snapshot
}

type pollEntry struct {
	handle  *poller.Handle
	actor   domain.ActorKey
	session string
}

// CheckoutService runs order confirmation polls after a payment redirect.
type CheckoutService struct {
	payments  poller.PaymentVerifier
	orders    poller.OrderLookup
	carts     *CartService
	events    OrderEvents
	cfg       poller.Config
	retention time.Duration
	logger    *slog.Logger
	newID     func() string

	// base outlives the requests that start polls; Close cancels it.
	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	polls     map[string]*pollEntry
	bySession map[string]string
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	payments poller.PaymentVerifier,
	orders poller.OrderLookup,
	carts *CartService,
	events OrderEvents,
	cfg poller.Config,
	retention time.Duration,
	logger *slog.Logger,
) *CheckoutService {
	if retention <= 0 {
		retention = DefaultPollRetention
	}
	base, cancel := context.WithCancel(context.Background())
	return &CheckoutService{
		payments:  payments,
		orders:    orders,
		carts:     carts,
		events:    events,
		cfg:       cfg,
		retention: retention,
		logger:    logger,
		newID:     uuid.NewString,
		base:      base,
		cancel:    cancel,
		polls:     make(map[string]*pollEntry),
		bySession: make(map[string]string),
	}
}

// StartConfirmation starts polling for the order created by the payment
// session. A poll already running or found for the same session and actor
// is reused.
func (s *CheckoutService) StartConfirmation(ctx context.Context, actor domain.ActorKey, sessionID string) (*PollView, error) {
	if actor.IsZero() {
		return nil, apperrors.InvalidInput("cart owner is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bySession[sessionID]; ok && sessionID != "" {
		if e := s.polls[id]; e != nil && e.actor == actor {
			snap := e.handle.Snapshot()
			if !snap.Cancelled && (!snap.State.Terminal() || snap.State == poller.StateFound) {
				return &PollView{ID: id, Snapshot: snap}, nil
			}
		}
	}

	id := s.newID()
	log := s.logger.With(slog.String("poll_id", id), slog.String("actor", actor.String()))
	deps := poller.Deps{
		Payments: s.payments,
		Orders:   s.orders,
		Cart:     poller.ClearFunc(s.carts.ClearerFor(actor)),
		OnFound: func(ctx context.Context, o *domain.Order, attempts int) {
			if err := s.events.PublishOrderMaterialized(ctx, actor, o, attempts); err != nil {
				log.ErrorContext(ctx, "failed to publish order materialized event",
					slog.String("order_id", o.ID),
					slog.String("error", err.Error()),
				)
			}
		},
		Logger: log,
	}

	// Keep request-scoped values such as the trace, but not its cancellation.
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	unregister := context.AfterFunc(s.base, stop)
	h := poller.Start(runCtx, s.cfg, sessionID, deps)
	go func() {
		<-h.Done()
		unregister()
		stop()
	}()

	s.polls[id] = &pollEntry{handle: h, actor: actor, session: sessionID}
	if sessionID != "" {
		s.bySession[sessionID] = id
	}
	log.InfoContext(ctx, "confirmation poll started")

	return &PollView{ID: id, Snapshot: h.Snapshot()}, nil
}

// Status returns the current state of a poll owned by actor.
func (s *CheckoutService) Status(_ context.Context, actor domain.ActorKey, pollID string) (*PollView, error) {
	e, err := s.entry(actor, pollID)
	if err != nil {
		return nil, err
	}
	return &PollView{ID: pollID, Snapshot: e.handle.Snapshot()}, nil
}

// Cancel tears down a poll owned by actor. Cancelling a finished poll
// leaves its result in place.
func (s *CheckoutService) Cancel(ctx context.Context, actor domain.ActorKey, pollID string) error {
	e, err := s.entry(actor, pollID)
	if err != nil {
		return err
	}
	e.handle.Cancel()
	s.logger.InfoContext(ctx, "confirmation poll cancelled", slog.String("poll_id", pollID))
	return nil
}

// GetOrderBySession looks up the order written for a payment session on
// behalf of actor. An order placed by a customer is visible only to that
// customer; anyone else gets NotFound. Guest orders are returned to the
// holder of the session token without the contact email.
func (s *CheckoutService) GetOrderBySession(ctx context.Context, actor domain.ActorKey, sessionID string) (*domain.Order, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if actor.IsZero() {
		return nil, apperrors.Unauthorized("an actor is required")
	}
	o, err := s.orders.GetOrderBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != "" {
		if actor.Anonymous || actor.ID != o.CustomerID {
			return nil, apperrors.NotFound("order", sessionID)
		}
		return o, nil
	}
	guest := *o
	guest.Email = ""
	return &guest, nil
}

// Sweep evicts polls that finished, or were cancelled, more than the
// retention window ago. It returns the number evicted.
func (s *CheckoutService) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.polls {
		snap := e.handle.Snapshot()
		var ended time.Time
		switch {
		case snap.FinishedAt != nil:
			ended = *snap.FinishedAt
		case snap.Cancelled:
			ended = snap.StartedAt
		default:
			continue
		}
		if now.Sub(ended) < s.retention {
			continue
		}
		delete(s.polls, id)
		if s.bySession[e.session] == id {
			delete(s.bySession, e.session)
		}
		evicted++
	}
	return evicted
}

// Close cancels every running poll.
func (s *CheckoutService) Close() {
	s.cancel()
}

func (s *CheckoutService) entry(actor domain.ActorKey, pollID string) (*pollEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.polls[pollID]
	if !ok || e.actor != actor {
		return nil, apperrors.NotFound("confirmation poll", pollID)
	}
	return e, nil
}
