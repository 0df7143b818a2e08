package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/PackStore/internal/service"
	"github.com/utafrali/PackStore/pkg/httputil"
	"github.com/utafrali/PackStore/pkg/validator"
)

var (
	errInvalidQuantity     = errors.New("quantity must be a positive integer")
	errInvalidAnonymousKey = errors.New("anonymous_key must be an anonymous cart session")
)

// ConfirmRequest is the JSON request body for starting order confirmation.
// A missing session_id starts a poll that ends in ERROR straight away.
type ConfirmRequest struct {
	SessionID string `json:"session_id" validate:"max=255"`
}

// CheckoutHandler handles HTTP requests for order confirmation.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// StartConfirmation handles POST /api/v1/checkout/confirm
func (h *CheckoutHandler) StartConfirmation(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	v, err := h.service.StartConfirmation(r.Context(), actorFromContext(r.Context()), strings.TrimSpace(req.SessionID))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.Header().Set("Location", "/api/v1/checkout/confirm/"+v.ID)
	httputil.WriteData(w, http.StatusAccepted, v)
}

// GetConfirmation handles GET /api/v1/checkout/confirm/{pollId}
func (h *CheckoutHandler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Status(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "pollId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// CancelConfirmation handles DELETE /api/v1/checkout/confirm/{pollId}
func (h *CheckoutHandler) CancelConfirmation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "pollId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOrderBySession handles GET /api/v1/orders/by-session/{sessionId}
func (h *CheckoutHandler) GetOrderBySession(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrderBySession(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "sessionId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, o)
}
