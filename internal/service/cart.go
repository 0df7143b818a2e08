package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/cart"
	"github.com/utafrali/PackStore/internal/catalog"
	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/internal/ordertotal"
	"github.com/utafrali/PackStore/internal/pricing"
	"github.com/utafrali/PackStore/internal/repository"
	"github.com/utafrali/PackStore/internal/shipping"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// AddItemInput holds the parameters for adding an item to the cart. Prices
// are never taken from the caller; PackQuantity selects one of the
// variant's pack sizes.
type AddItemInput struct {
	ProductID    string `json:"product_id" validate:"required"`
	VariantID    string `json:"variant_id"`
	Quantity     int    `json:"quantity" validate:"required,gte=1"`
	PackQuantity int    `json:"pack_quantity" validate:"gte=0"`
}

// UpdateQuantityInput holds the parameters for updating an item quantity.
type UpdateQuantityInput struct {
	Quantity int `json:"quantity"`
}

// SetShippingInput selects a shipping method.
type SetShippingInput struct {
	Method string `json:"method" validate:"required"`
}

// MergeInput names the anonymous cart to fold into the customer's, either
// as a bare session id or in "anon:<id>" form.
type MergeInput struct {
	AnonymousKey string `json:"anonymous_key"`
}

// CartView is a cart together with its totals.
type CartView struct {
	Cart    *domain.Cart `json:"cart"`
	Summary cart.Summary `json:"summary"`
}

// CartEvents publishes cart lifecycle events.
type CartEvents interface {
	PublishCartUpdated(ctx context.Context, c *domain.Cart) error
	PublishCartCleared(ctx context.Context, actor domain.ActorKey) error
}

// CartService implements the business logic for cart operations.
type CartService struct {
	store    repository.CartStore
	catalog  catalog.Reader
	events   CartEvents
	shipping *shipping.Table
	totals   *ordertotal.Calculator
	logger   *slog.Logger
	opts     []cart.Option
}

// NewCartService creates a new cart service.
func NewCartService(
	store repository.CartStore,
	catalogReader catalog.Reader,
	events CartEvents,
	shippingTable *shipping.Table,
	totals *ordertotal.Calculator,
	logger *slog.Logger,
	opts ...cart.Option,
) *CartService {
	base := []cart.Option{
		cart.WithShipping(shippingTable),
		cart.WithCalculator(totals),
		cart.WithLogger(logger),
	}
	return &CartService{
		store:    store,
		catalog:  catalogReader,
		events:   events,
		shipping: shippingTable,
		totals:   totals,
		logger:   logger,
		opts:     append(base, opts...),
	}
}

// GetCart returns the actor's cart, or an empty one if none is stored.
func (s *CartService) GetCart(ctx context.Context, actor domain.ActorKey) (*CartView, error) {
	agg, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	return view(agg), nil
}

// AddItem resolves the product from the catalog and adds it to the cart.
func (s *CartService) AddItem(ctx context.Context, actor domain.ActorKey, input AddItemInput) (*CartView, error) {
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	product, variant, err := s.resolveProduct(ctx, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}

	var optionPrice *decimal.Decimal
	if input.PackQuantity > 0 {
		if variant == nil {
			return nil, apperrors.InvalidInput("pack_quantity requires a variant")
		}
		opt, ok := variant.FindQuantityOption(input.PackQuantity)
		if !ok || opt.PricePerUnit == nil {
			return nil, apperrors.NotFound("quantity option", fmt.Sprintf("%s/%d", variant.Identity(), input.PackQuantity))
		}
		p := *opt.PricePerUnit
		optionPrice = &p
	}

	agg, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	item, err := agg.AddItem(ctx, *product, variant, input.Quantity, optionPrice)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("actor", actor.String()),
		slog.String("item_id", item.ID),
		slog.String("product_id", product.ID),
		slog.Int("quantity", item.Quantity),
	)
	s.publishUpdated(ctx, agg)
	return view(agg), nil
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, actor domain.ActorKey, itemID string, quantity int) (*CartView, error) {
	agg, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := agg.UpdateQuantity(ctx, itemID, quantity); err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, agg)
	return view(agg), nil
}

// RemoveItem drops a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, actor domain.ActorKey, itemID string) (*CartView, error) {
	agg, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := agg.RemoveItem(ctx, itemID); err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, agg)
	return view(agg), nil
}

// ClearCart empties the actor's cart and deletes its record.
func (s *CartService) ClearCart(ctx context.Context, actor domain.ActorKey) error {
	agg, err := s.load(ctx, actor)
	if err != nil {
		return err
	}
	agg.Clear(ctx)

	s.logger.InfoContext(ctx, "cart cleared", slog.String("actor", actor.String()))
	if err := s.events.PublishCartCleared(ctx, actor); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart cleared event",
			slog.String("actor", actor.String()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// SetShippingMethod selects the shipping method for the cart.
func (s *CartService) SetShippingMethod(ctx context.Context, actor domain.ActorKey, method string) (*CartView, error) {
	agg, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := agg.SetShippingMethod(ctx, method); err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, agg)
	return view(agg), nil
}

// Summary returns the cart totals before VAT.
func (s *CartService) Summary(ctx context.Context, actor domain.ActorKey) (cart.Summary, error) {
	agg, err := s.load(ctx, actor)
	if err != nil {
		return cart.Summary{}, err
	}
	return agg.Summary(), nil
}

// SummaryWithShipping returns the checkout totals including VAT.
func (s *CartService) SummaryWithShipping(ctx context.Context, actor domain.ActorKey) (cart.CheckoutSummary, error) {
	agg, err := s.load(ctx, actor)
	if err != nil {
		return cart.CheckoutSummary{}, err
	}
	return agg.SummaryWithShipping(), nil
}

// MergeAnonymous folds the anonymous cart into the customer's cart and
// deletes the anonymous record. A missing anonymous cart is a no-op.
func (s *CartService) MergeAnonymous(ctx context.Context, customer, anonymous domain.ActorKey) (*CartView, error) {
	if customer.IsZero() || customer.Anonymous {
		return nil, apperrors.Unauthorized("merging carts requires a signed-in customer")
	}
	if anonymous.IsZero() || !anonymous.Anonymous {
		return nil, apperrors.InvalidInput("anonymous_key must name an anonymous cart")
	}

	source, err := s.load(ctx, anonymous)
	if err != nil {
		return nil, err
	}
	target, err := s.load(ctx, customer)
	if err != nil {
		return nil, err
	}
	if source.Cart().IsEmpty() {
		return view(target), nil
	}

	if err := target.Merge(ctx, source.Cart()); err != nil {
		return nil, err
	}
	source.Clear(ctx)

	s.logger.InfoContext(ctx, "anonymous cart merged",
		slog.String("customer", customer.String()),
		slog.String("anonymous", anonymous.String()),
		slog.Int("lines", len(target.Cart().Items)),
	)
	s.publishUpdated(ctx, target)
	if err := s.events.PublishCartCleared(ctx, anonymous); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart cleared event",
			slog.String("actor", anonymous.String()),
			slog.String("error", err.Error()),
		)
	}
	return view(target), nil
}

// Preview prices quantity units of a product without touching any cart.
func (s *CartService) Preview(ctx context.Context, productID, variantID string, quantity int) (pricing.PreviewResult, error) {
	if productID == "" {
		return pricing.PreviewResult{}, apperrors.InvalidInput("product_id is required")
	}
	product, variant, err := s.resolveProduct(ctx, productID, variantID)
	if err != nil {
		return pricing.PreviewResult{}, err
	}
	return pricing.Preview(product, variant, quantity), nil
}

// ShippingMethods lists the selectable shipping methods.
func (s *CartService) ShippingMethods() []shipping.Method {
	return s.shipping.Methods()
}

// ClearerFor returns a cart-clearing func bound to actor.
func (s *CartService) ClearerFor(actor domain.ActorKey) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.ClearCart(ctx, actor)
	}
}

func (s *CartService) load(ctx context.Context, actor domain.ActorKey) (*cart.Aggregate, error) {
	if actor.IsZero() {
		return nil, apperrors.InvalidInput("cart owner is required")
	}
	return cart.Load(ctx, actor, s.store, s.opts...)
}

func (s *CartService) resolveProduct(ctx context.Context, productID, variantID string) (*domain.Product, *domain.Variant, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if variantID == "" {
		return product, nil, nil
	}
	variant, ok := product.FindVariant(variantID)
	if !ok {
		return nil, nil, apperrors.NotFound("variant", variantID)
	}
	return product, variant, nil
}

func (s *CartService) publishUpdated(ctx context.Context, agg *cart.Aggregate) {
	if err := s.events.PublishCartUpdated(ctx, agg.Cart()); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart updated event",
			slog.String("actor", agg.Actor().String()),
			slog.String("error", err.Error()),
		)
	}
}

func view(agg *cart.Aggregate) *CartView {
	return &CartView{Cart: agg.Cart(), Summary: agg.Summary()}
}
