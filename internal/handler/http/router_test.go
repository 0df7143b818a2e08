package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/internal/event"
	"github.com/utafrali/PackStore/internal/ordertotal"
	"github.com/utafrali/PackStore/internal/payment"
	"github.com/utafrali/PackStore/internal/poller"
	redisrepo "github.com/utafrali/PackStore/internal/repository/redis"
	"github.com/utafrali/PackStore/internal/repository/routing"
	"github.com/utafrali/PackStore/internal/service"
	"github.com/utafrali/PackStore/internal/shipping"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
	"github.com/utafrali/PackStore/pkg/health"
	"github.com/utafrali/PackStore/pkg/httputil"
	pkgkafka "github.com/utafrali/PackStore/pkg/kafka"
	"github.com/utafrali/PackStore/pkg/middleware"
)

// ============================================================================
// Collaborator stubs
// ============================================================================

type stubCatalog map[string]*domain.Product

func (c stubCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := c[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	cp := *p
	return &cp, nil
}

type stubOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func (s *stubOrders) GetOrderBySession(_ context.Context, sessionID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[sessionID]
	if !ok {
		return nil, apperrors.NotFound("order", sessionID)
	}
	return o, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) published(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		if t == topic {
			return true
		}
	}
	return false
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func boxProduct() *domain.Product {
	hi := 99
	pack := dec("1.50")
	one := dec("1.99")
	return &domain.Product{
		ID:        "prod-box",
		Name:      "Shipping Box",
		BasePrice: dec("1.99"),
		Currency:  "GBP",
		PricingTiers: []domain.PricingTier{
			{MinQuantity: 50, MaxQuantity: &hi, Discount: dec("10"), Label: "50-99"},
		},
		Variants: []domain.Variant{{
			ID:  "var-small",
			SKU: "BOX-S",
			QuantityOptions: []domain.QuantityOption{
				{Quantity: 1, PricePerUnit: &one, IsActive: true},
				{Quantity: 100, PricePerUnit: &pack, IsActive: true},
			},
		}},
	}
}

type testServer struct {
	handler   http.Handler
	publisher *recordingPublisher
	orders    *stubOrders
	redis     *miniredis.Miniredis
	checkout  *service.CheckoutService
}

func newTestServer(t *testing.T, limiter *middleware.Limiter) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, RouterConfig{PollLimiter: limiter})
}

func newTestServerWithConfig(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisrepo.NewCartStore(client, time.Hour)
	pub := &recordingPublisher{}
	producer := event.NewProducer(pub, testLogger())
	orders := &stubOrders{orders: map[string]*domain.Order{}}

	carts := service.NewCartService(
		routing.NewCartStore(store, store),
		stubCatalog{"prod-box": boxProduct()},
		producer,
		shipping.MustDefaultTable(),
		ordertotal.New(ordertotal.DefaultPolicy()),
		testLogger(),
	)
	checkout := service.NewCheckoutService(
		payment.NewMockVerifier(),
		orders,
		carts,
		producer,
		poller.Config{MaxAttempts: 10, Interval: time.Millisecond, Deadline: 5 * time.Second},
		time.Minute,
		testLogger(),
	)
	t.Cleanup(checkout.Close)

	h := NewRouter(carts, checkout, health.NewHandler(), testLogger(), cfg)
	return &testServer{handler: h, publisher: pub, orders: orders, redis: mr, checkout: checkout}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

var (
	anonHeaders     = map[string]string{middleware.HeaderCartSession: "sess-1"}
	customerHeaders = map[string]string{middleware.HeaderUserID: "user-1"}
)

type cartEnvelope struct {
	Data service.CartView `json:"data"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) service.CartView {
	t.Helper()
	var env cartEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var env httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NotNil(t, env.Error)
	return env.Error
}

// ============================================================================
// Tests
// ============================================================================

func TestCart_RequiresActor(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
}

func TestCart_BearerIdentity(t *testing.T) {
	s := newTestServerWithConfig(t, RouterConfig{JWTSecret: "s3cret"})

	rec := s.do(t, http.MethodGet, "/api/v1/cart", "", customerHeaders)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "forged X-User-ID is ignored")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user:user-1", decodeCart(t, rec).Cart.ActorKey.String())

	rec = s.do(t, http.MethodGet, "/api/v1/cart", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCart_AddAndGet(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"prod-box","variant_id":"BOX-S","quantity":75}`, anonHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	added := decodeCart(t, rec)
	require.Len(t, added.Cart.Items, 1)
	assert.True(t, dec("1.791").Equal(added.Cart.Items[0].PricePerUnit))
	assert.True(t, dec("134.33").Equal(added.Cart.Items[0].TotalPrice))
	assert.True(t, s.redis.Exists("cart:anon:sess-1"))
	assert.True(t, s.publisher.published(event.TopicCartUpdated))

	rec = s.do(t, http.MethodGet, "/api/v1/cart", "", anonHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeCart(t, rec)
	require.Len(t, got.Cart.Items, 1)
	assert.Equal(t, added.Cart.Items[0].ID, got.Cart.Items[0].ID)
	assert.True(t, dec("139.32").Equal(got.Summary.Total), got.Summary.Total.String())
}

func TestCart_AddRejectsClientPrice(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"prod-box","quantity":1,"price":"0.01"}`, anonHeaders)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_AddValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod-box","quantity":0}`, anonHeaders)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Contains(t, e.Fields, "quantity")
}

func TestCart_AddUnknownProduct(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod-none","quantity":1}`, anonHeaders)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCart_AddOverLimit(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod-box","quantity":10001}`, anonHeaders)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod-box","quantity":10}`, anonHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	itemID := decodeCart(t, rec).Cart.Items[0].ID

	rec = s.do(t, http.MethodPut, "/api/v1/cart/items/"+itemID, `{"quantity":60}`, anonHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "50-99", decodeCart(t, rec).Cart.Items[0].TierLabel)

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/missing", "", anonHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/"+itemID, "", anonHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Cart.Items)
	assert.False(t, s.redis.Exists("cart:anon:sess-1"))

	rec = s.do(t, http.MethodDelete, "/api/v1/cart", "", anonHeaders)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.publisher.published(event.TopicCartCleared))
}

func TestCart_ShippingAndSummary(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod-box","variant_id":"BOX-S","quantity":75}`, customerHeaders)

	rec := s.do(t, http.MethodPut, "/api/v1/cart/shipping", `{"method":"express"}`, customerHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/cart/shipping", `{"method":"teleport"}`, customerHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/cart/summary", "", customerHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data struct {
			Subtotal       decimal.Decimal `json:"subtotal"`
			Shipping       decimal.Decimal `json:"shipping"`
			VATAmount      decimal.Decimal `json:"vat_amount"`
			Total          decimal.Decimal `json:"total"`
			ShippingMethod string          `json:"shipping_method"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	// (134.33 + 9.99) * 0.20 = 28.864
	assert.Equal(t, "express", env.Data.ShippingMethod)
	assert.True(t, dec("9.99").Equal(env.Data.Shipping))
	assert.True(t, dec("28.86").Equal(env.Data.VATAmount), env.Data.VATAmount.String())
	assert.True(t, dec("173.18").Equal(env.Data.Total), env.Data.Total.String())
}

func TestCart_Merge(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod-box","quantity":30}`, anonHeaders)
	s.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod-box","quantity":30}`, customerHeaders)

	headers := map[string]string{
		middleware.HeaderUserID:      "user-1",
		middleware.HeaderCartSession: "sess-1",
	}
	rec := s.do(t, http.MethodPost, "/api/v1/cart/merge", `{}`, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	merged := decodeCart(t, rec)
	require.Len(t, merged.Cart.Items, 1)
	assert.Equal(t, 60, merged.Cart.Items[0].Quantity)
	assert.False(t, s.redis.Exists("cart:anon:sess-1"))
}

func TestCart_MergeRejectsCustomerKey(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/merge", `{"anonymous_key":"user:user-2"}`, customerHeaders)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricingPreview(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/pricing/preview?product_id=prod-box&variant_id=BOX-S&quantity=120", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env struct {
		Data struct {
			UnitPrice decimal.Decimal `json:"unit_price"`
			Total     decimal.Decimal `json:"total"`
			Badges    []struct {
				Quantity        int `json:"quantity"`
				DiscountPercent int `json:"discount_percent"`
			} `json:"badges"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.True(t, dec("1.50").Equal(env.Data.UnitPrice), env.Data.UnitPrice.String())
	assert.True(t, dec("180").Equal(env.Data.Total))
	require.Len(t, env.Data.Badges, 1)
	assert.Equal(t, 25, env.Data.Badges[0].DiscountPercent)

	rec = s.do(t, http.MethodGet, "/api/v1/pricing/preview?product_id=prod-box&quantity=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShippingMethods(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/shipping/methods", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `"next-day"`)
}

type pollEnvelope struct {
	Data service.PollView `json:"data"`
}

func TestCheckoutConfirm_Found(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod-box","quantity":3}`, customerHeaders)
	s.orders.mu.Lock()
	s.orders.orders["cs_test_1"] = &domain.Order{ID: "ord-1", SessionID: "cs_test_1", Status: "paid", Total: dec("12.00"), Currency: "GBP"}
	s.orders.mu.Unlock()

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/confirm", `{"session_id":"cs_test_1"}`, customerHeaders)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started pollEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	require.NotEmpty(t, started.Data.ID)
	assert.Equal(t, "/api/v1/checkout/confirm/"+started.Data.ID, rec.Header().Get("Location"))

	var last pollEnvelope
	require.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/v1/checkout/confirm/"+started.Data.ID, "", customerHeaders)
		if rec.Code != http.StatusOK {
			return false
		}
		last = pollEnvelope{}
		return json.NewDecoder(rec.Body).Decode(&last) == nil && last.Data.State == poller.StateFound
	}, 5*time.Second, 5*time.Millisecond)

	require.NotNil(t, last.Data.Order)
	assert.Equal(t, "ord-1", last.Data.Order.ID)
	require.Eventually(t, func() bool { return !s.redis.Exists("cart:user:user-1") }, 5*time.Second, 5*time.Millisecond)
}

func TestCheckoutConfirm_OtherActor(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/confirm", `{"session_id":"cs_test_1"}`, customerHeaders)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started pollEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))

	rec = s.do(t, http.MethodGet, "/api/v1/checkout/confirm/"+started.Data.ID, "", anonHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/checkout/confirm/"+started.Data.ID, "", customerHeaders)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCheckoutConfirm_StatusRateLimited(t *testing.T) {
	s := newTestServer(t, middleware.NewLimiter(1, 1, time.Minute))

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/confirm", `{"session_id":""}`, customerHeaders)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started pollEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))

	path := "/api/v1/checkout/confirm/" + started.Data.ID
	first := s.do(t, http.MethodGet, path, "", customerHeaders)
	second := s.do(t, http.MethodGet, path, "", customerHeaders)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestOrderBySession(t *testing.T) {
	s := newTestServer(t, nil)
	s.orders.orders["cs_test_1"] = &domain.Order{ID: "ord-1", SessionID: "cs_test_1", Total: dec("1.00"), Email: "guest@example.com"}

	rec := s.do(t, http.MethodGet, "/api/v1/orders/by-session/cs_test_1", "", anonHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ord-1"`)
	assert.NotContains(t, rec.Body.String(), "guest@example.com")

	rec = s.do(t, http.MethodGet, "/api/v1/orders/by-session/cs_missing", "", anonHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/by-session/cs_test_1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderBySession_OtherCustomer(t *testing.T) {
	s := newTestServer(t, nil)
	s.orders.orders["cs_owned"] = &domain.Order{
		ID:         "ord-2",
		SessionID:  "cs_owned",
		CustomerID: "user-1",
		Email:      "owner@example.com",
		Total:      dec("5.00"),
	}

	rec := s.do(t, http.MethodGet, "/api/v1/orders/by-session/cs_owned", "", map[string]string{middleware.HeaderUserID: "user-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "owner@example.com")

	rec = s.do(t, http.MethodGet, "/api/v1/orders/by-session/cs_owned", "", anonHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/by-session/cs_owned", "", customerHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "owner@example.com")
}

func TestContentTypeJSON(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader("product_id=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.HeaderCartSession, "sess-1")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", "", nil).Code)
}
