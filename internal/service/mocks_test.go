package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/internal/ordertotal"
	"github.com/utafrali/PackStore/internal/shipping"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// --- Mock Catalog ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

// --- Mock Events ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishCartUpdated(ctx context.Context, c *domain.Cart) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockEvents) PublishCartCleared(ctx context.Context, actor domain.ActorKey) error {
	args := m.Called(ctx, actor)
	return args.Error(0)
}

func (m *mockEvents) PublishOrderMaterialized(ctx context.Context, actor domain.ActorKey, o *domain.Order, attempts int) error {
	args := m.Called(ctx, actor, o, attempts)
	return args.Error(0)
}

// --- In-memory store ---

type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.Cart
	deletes []string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.Cart)}
}

func (s *memStore) Load(_ context.Context, actor domain.ActorKey) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[actor.String()]
	if !ok {
		return nil, apperrors.NotFound("cart", actor.String())
	}
	return c.Clone(), nil
}

func (s *memStore) Save(_ context.Context, c *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[c.ActorKey.String()] = c.Clone()
	return nil
}

func (s *memStore) Delete(_ context.Context, actor domain.ActorKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, actor.String())
	delete(s.records, actor.String())
	return nil
}

func (s *memStore) has(actor domain.ActorKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[actor.String()]
	return ok
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int { return &i }

// boxProduct is a 1.99 box with a 50-99 tier at 10% and 100+ at 20%. Its
// BOX-S variant sells packs of 100 at 1.50.
func boxProduct() *domain.Product {
	return &domain.Product{
		ID:        "prod-box",
		Name:      "Shipping Box",
		BasePrice: dec("1.99"),
		Currency:  "GBP",
		PricingTiers: []domain.PricingTier{
			{MinQuantity: 50, MaxQuantity: intPtr(99), Discount: dec("10"), Label: "50-99"},
			{MinQuantity: 100, Discount: dec("20"), Label: "100+"},
		},
		Variants: []domain.Variant{
			{
				ID:  "var-small",
				SKU: "BOX-S",
				QuantityOptions: []domain.QuantityOption{
					{Quantity: 1, PricePerUnit: decPtr("1.99"), IsActive: true},
					{Quantity: 100, PricePerUnit: decPtr("1.50"), IsActive: true, Label: "Pack of 100"},
					{Quantity: 250, PricePerUnit: decPtr("1.40"), IsActive: false},
				},
			},
		},
	}
}

type fixture struct {
	store   *memStore
	catalog *mockCatalog
	events  *mockEvents
	svc     *CartService
}

func newFixture() *fixture {
	f := &fixture{
		store:   newMemStore(),
		catalog: new(mockCatalog),
		events:  new(mockEvents),
	}
	f.svc = NewCartService(
		f.store,
		f.catalog,
		f.events,
		shipping.MustDefaultTable(),
		ordertotal.New(ordertotal.DefaultPolicy()),
		newTestLogger(),
	)
	return f
}
