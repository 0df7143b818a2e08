package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/PackStore/internal/service"
	"github.com/utafrali/PackStore/pkg/health"
	"github.com/utafrali/PackStore/pkg/middleware"
)

const serviceName = "packstore"

// RouterConfig carries the knobs of NewRouter that come from configuration.
type RouterConfig struct {
	RequestTimeout time.Duration
	PprofCIDRs     []string
	// PollLimiter throttles confirmation status polling per caller. Nil
	// disables the limit.
	PollLimiter *middleware.Limiter
	// JWTSecret, when set, derives the user from a bearer token instead of
	// trusting X-User-ID.
	JWTSecret string
}

// NewRouter creates a chi router with all packstore routes registered.
func NewRouter(
	cartService *service.CartService,
	checkoutService *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	if cfg.JWTSecret != "" {
		r.Use(middleware.BearerIdentity(cfg.JWTSecret, logger))
	}
	r.Use(middleware.ResolveIdentity())
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(cartService, logger)
	checkoutHandler := NewCheckoutHandler(checkoutService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(middleware.CacheControl(60)).Get("/shipping/methods", cartHandler.ListShippingMethods)
		r.With(middleware.NoStore()).Get("/pricing/preview", cartHandler.Preview)
		r.With(middleware.NoStore(), RequireActor).Get("/orders/by-session/{sessionId}", checkoutHandler.GetOrderBySession)

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.NoStore())
			r.Use(RequireActor)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Get("/summary", cartHandler.GetSummary)
			r.Put("/shipping", cartHandler.SetShippingMethod)
			r.Post("/merge", cartHandler.Merge)

			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{itemId}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{itemId}", cartHandler.RemoveItem)
		})

		r.Route("/checkout/confirm", func(r chi.Router) {
			r.Use(middleware.NoStore())
			r.Use(RequireActor)

			r.Post("/", checkoutHandler.StartConfirmation)
			r.Delete("/{pollId}", checkoutHandler.CancelConfirmation)

			status := r.With()
			if cfg.PollLimiter != nil {
				status = r.With(middleware.RateLimit(cfg.PollLimiter, middleware.ByIdentityOrIP, logger))
			}
			status.Get("/{pollId}", checkoutHandler.GetConfirmation)
		})
	})

	return r
}
