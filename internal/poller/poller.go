// Package poller reconciles a payment redirect with the order record that
// the payment webhook writes asynchronously. A poll verifies the payment
// once, then looks the order up until it appears, the attempt budget runs
// out, or the wall-clock deadline passes.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/PackStore/internal/domain"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

const (
	tracerName   = "github.com/utafrali/PackStore/poller"
	clearTimeout = 5 * time.Second
)

// Config bounds a poll. A poll ends in NOT_FOUND_TIMEOUT as soon as either
// MaxAttempts lookups have missed or Deadline has passed since Start,
// whichever comes first. With the defaults the attempt budget runs out
// after about 13.5s, well inside the 30s deadline.
type Config struct {
	MaxAttempts int           `env:"POLL_MAX_ATTEMPTS" envDefault:"10"`
	Interval    time.Duration `env:"POLL_INTERVAL" envDefault:"1500ms"`
	Deadline    time.Duration `env:"POLL_DEADLINE" envDefault:"30s"`
}

// DefaultConfig is ten attempts 1.5s apart within 30s.
func DefaultConfig() Config {
	return Config{MaxAttempts: 10, Interval: 1500 * time.Millisecond, Deadline: 30 * time.Second}
}

// PaymentVerifier confirms the payment session.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, sessionID string) (domain.PaymentStatus, error)
}

// OrderLookup finds the order for a session, returning
// apperrors.ErrNotFound until it has been written.
type OrderLookup interface {
	GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error)
}

// CartClearer empties the buyer's cart. Clearing an empty cart must
// succeed.
type CartClearer interface {
	ClearCart(ctx context.Context) error
}

// ClearFunc adapts a function to CartClearer.
type ClearFunc func(ctx context.Context) error

// ClearCart calls f.
func (f ClearFunc) ClearCart(ctx context.Context) error { return f(ctx) }

// Deps are the collaborators of a poll. Cart, OnFound and Logger are
// optional.
type Deps struct {
	Payments PaymentVerifier
	Orders   OrderLookup
	Cart     CartClearer
	OnFound  func(ctx context.Context, order *domain.Order, attempts int)
	Logger   *slog.Logger
}

// Handle is a running poll. It is safe for concurrent use.
type Handle struct {
	mu        sync.Mutex
	snap      Snapshot
	live      bool
	cancel    context.CancelFunc
	done      chan struct{}
	clearOnce sync.Once
}

// Snapshot returns the current progress.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.snap
	if s.Order != nil {
		o := *s.Order
		s.Order = &o
	}
	return s
}

// Cancel stops the poll. Any timer or lookup still in flight becomes a
// no-op; the snapshot keeps its last state and is marked cancelled unless
// the poll had already finished.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.live {
		h.live = false
		if !h.snap.State.Terminal() {
			h.snap.Cancelled = true
		}
	}
	h.mu.Unlock()
	h.cancel()
}

// Done is closed when the poll goroutine has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// update applies fn unless the handle was cancelled or already terminal.
func (h *Handle) update(fn func(s *Snapshot)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.live || h.snap.State.Terminal() {
		return false
	}
	fn(&h.snap)
	return true
}

// Start launches a poll for sessionID. ctx must outlive the request that
// started it; cancelling ctx cancels the poll.
func Start(ctx context.Context, cfg Config, sessionID string, deps Deps) *Handle {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		snap: Snapshot{
			State:       StateVerifyingPayment,
			MaxAttempts: cfg.MaxAttempts,
			StartedAt:   time.Now().UTC(),
		},
		live:   true,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r := &run{cfg: cfg, sessionID: sessionID, deps: deps, h: h, tracer: otel.Tracer(tracerName)}
	go func() {
		defer close(h.done)
		defer cancel()
		r.execute(runCtx)
	}()
	return h
}

type run struct {
	cfg       Config
	sessionID string
	deps      Deps
	h         *Handle
	tracer    trace.Tracer
}

func (r *run) execute(parent context.Context) {
	log := r.deps.Logger.With(slog.String("session_id", r.sessionID))

	if r.sessionID == "" {
		r.finish(parent, log, StateError, func(s *Snapshot) {
			s.Error = "missing payment session token"
		})
		return
	}

	ctx, cancel := context.WithTimeout(parent, r.cfg.Deadline)
	defer cancel()

	status, err := r.verify(ctx)
	if err != nil {
		if parent.Err() != nil {
			return
		}
		r.finish(parent, log, StateError, func(s *Snapshot) {
			s.Error = fmt.Sprintf("payment verification failed: %v", err)
		})
		return
	}
	if !status.Paid {
		r.finish(parent, log, StateError, func(s *Snapshot) {
			s.PaymentStatus = status.Status
			s.Error = fmt.Sprintf("payment not completed: %s", status.Status)
		})
		return
	}

	if !r.h.update(func(s *Snapshot) {
		s.State = StatePollingForOrder
		s.PaymentStatus = status.Status
	}) {
		return
	}
	log.InfoContext(ctx, "payment verified, polling for order")

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if !r.h.update(func(s *Snapshot) { s.Attempt = attempt }) {
			return
		}

		order, err := r.lookup(ctx, attempt)
		switch {
		case parent.Err() != nil:
			return
		case err == nil:
			r.found(parent, log, order, attempt)
			return
		case ctx.Err() != nil:
			r.timeout(parent, log)
			return
		case !errors.Is(err, apperrors.ErrNotFound):
			r.finish(parent, log, StateError, func(s *Snapshot) {
				s.Error = fmt.Sprintf("order lookup failed: %v", err)
			})
			return
		}

		if attempt == r.cfg.MaxAttempts {
			break
		}
		timer := time.NewTimer(r.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if parent.Err() != nil {
				return
			}
			r.timeout(parent, log)
			return
		case <-timer.C:
		}
	}
	r.timeout(parent, log)
}

func (r *run) verify(ctx context.Context) (_ domain.PaymentStatus, err error) {
	ctx, span := r.tracer.Start(ctx, "poller.verify_payment")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	return r.deps.Payments.VerifyPayment(ctx, r.sessionID)
}

func (r *run) lookup(ctx context.Context, attempt int) (_ *domain.Order, err error) {
	ctx, span := r.tracer.Start(ctx, "poller.lookup_order",
		trace.WithAttributes(attribute.Int("poll.attempt", attempt)),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("order.found", err == nil))
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	return r.deps.Orders.GetOrderBySession(ctx, r.sessionID)
}

func (r *run) found(ctx context.Context, log *slog.Logger, order *domain.Order, attempt int) {
	if !r.finish(ctx, log, StateFound, func(s *Snapshot) { s.Order = order }) {
		return
	}
	log.InfoContext(ctx, "order materialized",
		slog.String("order_id", order.ID),
		slog.Int("attempt", attempt),
	)

	if r.deps.Cart != nil {
		r.h.clearOnce.Do(func() {
			clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
			defer cancel()
			if err := r.deps.Cart.ClearCart(clearCtx); err != nil {
				log.ErrorContext(ctx, "failed to clear cart after order", slog.String("error", err.Error()))
			}
		})
	}
	if r.deps.OnFound != nil {
		r.deps.OnFound(context.WithoutCancel(ctx), order, attempt)
	}
}

func (r *run) timeout(ctx context.Context, log *slog.Logger) {
	r.finish(ctx, log, StateNotFoundTimeout, func(*Snapshot) {})
}

// finish moves to a terminal state and records the outcome.
func (r *run) finish(ctx context.Context, log *slog.Logger, state State, fn func(s *Snapshot)) bool {
	var attempts int
	ok := r.h.update(func(s *Snapshot) {
		fn(s)
		now := time.Now().UTC()
		s.State = state
		s.FinishedAt = &now
		attempts = s.Attempt
	})
	if !ok {
		return false
	}
	pollOutcomes.WithLabelValues(string(state)).Inc()
	pollAttempts.Observe(float64(attempts))

	level := slog.LevelInfo
	if state == StateError {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "confirmation poll finished",
		slog.String("state", string(state)),
		slog.Int("attempts", attempts),
	)
	return true
}
