package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/internal/service"
	"github.com/utafrali/PackStore/pkg/httputil"
	"github.com/utafrali/PackStore/pkg/middleware"
	"github.com/utafrali/PackStore/pkg/validator"
)

// CartHandler handles HTTP requests for cart, pricing and shipping
// endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetCart(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	v, err := h.service.AddItem(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{itemId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateQuantityInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	v, err := h.service.UpdateQuantity(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "itemId"), req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// RemoveItem handles DELETE /api/v1/cart/items/{itemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.RemoveItem(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "itemId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), actorFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// SetShippingMethod handles PUT /api/v1/cart/shipping
func (h *CartHandler) SetShippingMethod(w http.ResponseWriter, r *http.Request) {
	var req service.SetShippingInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	v, err := h.service.SetShippingMethod(r.Context(), actorFromContext(r.Context()), req.Method)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// GetSummary handles GET /api/v1/cart/summary
func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.SummaryWithShipping(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, s)
}

// Merge handles POST /api/v1/cart/merge
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req service.MergeInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	key := strings.TrimSpace(req.AnonymousKey)
	if key == "" {
		if id, ok := middleware.IdentityFromContext(r.Context()); ok {
			key = id.SessionID
		}
	}
	anonymous, ok := parseAnonymousKey(key)
	if !ok {
		httputil.WriteValidationError(w, errInvalidAnonymousKey)
		return
	}

	v, err := h.service.MergeAnonymous(r.Context(), actorFromContext(r.Context()), anonymous)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// Preview handles GET /api/v1/pricing/preview
func (h *CartHandler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quantity := 1
	if raw := q.Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteValidationError(w, errInvalidQuantity)
			return
		}
		quantity = n
	}

	p, err := h.service.Preview(r.Context(), q.Get("product_id"), q.Get("variant_id"), quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// ListShippingMethods handles GET /api/v1/shipping/methods
func (h *CartHandler) ListShippingMethods(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.service.ShippingMethods())
}

func parseAnonymousKey(s string) (domain.ActorKey, bool) {
	if s == "" {
		return domain.ActorKey{}, false
	}
	if !strings.Contains(s, ":") {
		return domain.AnonymousSession(s), true
	}
	k, err := domain.ParseActorKey(s)
	if err != nil || !k.Anonymous {
		return domain.ActorKey{}, false
	}
	return k, true
}
