// Package cart implements the cart aggregate: line items priced by the
// pricing resolver, recomputed on every mutation, and persisted through a
// repository.CartStore.
//
// Persistence is attempted once per mutation and its failures are logged,
// not returned. Two writers on the same actor key are last-write-wins.
package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/internal/ordertotal"
	"github.com/utafrali/PackStore/internal/pricing"
	"github.com/utafrali/PackStore/internal/repository"
	"github.com/utafrali/PackStore/internal/shipping"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// Upper bounds that keep a single cart from growing without limit.
const (
	MaxQuantityPerItem = 10000
	MaxItemsPerCart    = 100
)

var hundred = decimal.NewFromInt(100)

// Aggregate owns one actor's cart for the duration of a request.
type Aggregate struct {
	cart     *domain.Cart
	store    repository.CartStore
	shipping *shipping.Table
	totals   *ordertotal.Calculator
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an Aggregate.
type Option func(*Aggregate)

// WithShipping sets the shipping price table.
func WithShipping(t *shipping.Table) Option {
	return func(a *Aggregate) { a.shipping = t }
}

// WithCalculator sets the order total calculator.
func WithCalculator(c *ordertotal.Calculator) Option {
	return func(a *Aggregate) { a.totals = c }
}

// WithLogger sets the logger for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregate) { a.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregate) { a.now = now }
}

// WithIDGenerator overrides line ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(a *Aggregate) { a.newID = fn }
}

func newAggregate(store repository.CartStore, opts []Option) *Aggregate {
	a := &Aggregate{
		store:  store,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.shipping == nil {
		a.shipping = shipping.MustDefaultTable()
	}
	if a.totals == nil {
		a.totals = ordertotal.New(ordertotal.DefaultPolicy())
	}
	return a
}

// New creates an empty cart for actor.
func New(actor domain.ActorKey, store repository.CartStore, opts ...Option) *Aggregate {
	a := newAggregate(store, opts)
	a.cart = &domain.Cart{
		ActorKey:       actor,
		Items:          []domain.CartItem{},
		ShippingMethod: a.shipping.Default(),
		UpdatedAt:      a.now().UTC(),
	}
	return a
}

// Load reads actor's cart from store, or starts an empty one when none
// exists. Loaded lines are re-priced from their snapshots.
func Load(ctx context.Context, actor domain.ActorKey, store repository.CartStore, opts ...Option) (*Aggregate, error) {
	stored, err := store.Load(ctx, actor)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return New(actor, store, opts...), nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}

	a := newAggregate(store, opts)
	a.cart = stored
	a.cart.ActorKey = actor
	if a.cart.Items == nil {
		a.cart.Items = []domain.CartItem{}
	}
	if !a.shipping.Has(a.cart.ShippingMethod) {
		a.cart.ShippingMethod = a.shipping.Default()
	}
	for i := range a.cart.Items {
		reprice(&a.cart.Items[i], a.cart.Items[i].QuantityOptionPrice)
	}
	return a, nil
}

// Cart returns a copy of the current state.
func (a *Aggregate) Cart() *domain.Cart {
	return a.cart.Clone()
}

// Actor returns the owning actor key.
func (a *Aggregate) Actor() domain.ActorKey {
	return a.cart.ActorKey
}

// AddItem adds quantity units of product/variant. An existing line with the
// same merge key has its quantity summed and is re-priced for the new total.
// optionPrice, when positive, prices a new line at an explicit pack price.
func (a *Aggregate) AddItem(ctx context.Context, p domain.Product, v *domain.Variant, quantity int, optionPrice *decimal.Decimal) (domain.CartItem, error) {
	idx, err := a.addLine(p, v, quantity, optionPrice)
	if err != nil {
		return domain.CartItem{}, err
	}
	a.touch()
	a.sync(ctx)
	return a.cart.Items[idx], nil
}

func (a *Aggregate) addLine(p domain.Product, v *domain.Variant, quantity int, optionPrice *decimal.Decimal) (int, error) {
	if err := validateQuantity(quantity); err != nil {
		return -1, err
	}
	if p.ID == "" {
		return -1, apperrors.InvalidInput("product id is required")
	}

	if idx := a.cart.FindItemIndex(domain.LineKey(p.ID, v)); idx >= 0 {
		item := &a.cart.Items[idx]
		total := item.Quantity + quantity
		if total > MaxQuantityPerItem {
			return -1, apperrors.LimitExceeded(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
		item.Product = p
		item.Variant = cloneVariant(v)
		item.Quantity = total
		reprice(item, nil)
		return idx, nil
	}

	if len(a.cart.Items) >= MaxItemsPerCart {
		return -1, apperrors.LimitExceeded(fmt.Sprintf("cart must not contain more than %d lines", MaxItemsPerCart))
	}
	if optionPrice != nil && !optionPrice.IsPositive() {
		optionPrice = nil
	}
	item := domain.CartItem{
		ID:       a.newID(),
		Product:  p,
		Variant:  cloneVariant(v),
		Quantity: quantity,
	}
	reprice(&item, optionPrice)
	a.cart.Items = append(a.cart.Items, item)
	return len(a.cart.Items) - 1, nil
}

// UpdateQuantity sets a line's quantity and re-derives its pack option and
// price. A quantity of zero or less removes the line.
func (a *Aggregate) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return a.RemoveItem(ctx, itemID)
	}
	if quantity > MaxQuantityPerItem {
		return apperrors.LimitExceeded(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}
	idx := a.cart.FindItemByID(itemID)
	if idx < 0 {
		return apperrors.NotFound("cart item", itemID)
	}

	item := &a.cart.Items[idx]
	item.Quantity = quantity
	reprice(item, nil)

	a.touch()
	a.sync(ctx)
	return nil
}

// RemoveItem drops a line.
func (a *Aggregate) RemoveItem(ctx context.Context, itemID string) error {
	idx := a.cart.FindItemByID(itemID)
	if idx < 0 {
		return apperrors.NotFound("cart item", itemID)
	}
	a.cart.Items = append(a.cart.Items[:idx], a.cart.Items[idx+1:]...)

	a.touch()
	a.sync(ctx)
	return nil
}

// Clear empties the cart, resets shipping to the default and deletes the
// durable record. Clearing an empty cart is not an error.
func (a *Aggregate) Clear(ctx context.Context) {
	a.cart.Items = []domain.CartItem{}
	a.cart.ShippingMethod = a.shipping.Default()
	a.touch()
	a.sync(ctx)
}

// SetShippingMethod selects a shipping method. Item prices are untouched.
func (a *Aggregate) SetShippingMethod(ctx context.Context, id string) error {
	if !a.shipping.Has(id) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown shipping method %q", id))
	}
	a.cart.ShippingMethod = id
	a.touch()
	a.sync(ctx)
	return nil
}

// Merge folds other's lines into this cart with AddItem semantics and
// persists once. Nothing changes if any line would break a limit.
func (a *Aggregate) Merge(ctx context.Context, other *domain.Cart) error {
	if other == nil || other.IsEmpty() {
		return nil
	}
	snapshot := a.cart.Clone()
	for _, it := range other.Items {
		if _, err := a.addLine(it.Product, it.Variant, it.Quantity, it.QuantityOptionPrice); err != nil {
			a.cart = snapshot
			return err
		}
	}
	a.touch()
	a.sync(ctx)
	return nil
}

func (a *Aggregate) touch() {
	a.cart.UpdatedAt = a.now().UTC()
}

// sync saves the cart, or deletes its record once empty.
func (a *Aggregate) sync(ctx context.Context) {
	op := "save"
	var err error
	if a.cart.IsEmpty() {
		op = "delete"
		err = a.store.Delete(ctx, a.cart.ActorKey)
	} else {
		err = a.store.Save(ctx, a.cart.Clone())
	}
	if err != nil {
		syncFailures.WithLabelValues(op).Inc()
		a.logger.ErrorContext(ctx, "cart sync failed",
			slog.String("actor", a.cart.ActorKey.String()),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}

// reprice recomputes a line from its snapshot. TotalPrice is derived here
// and nowhere else.
func reprice(item *domain.CartItem, optionPrice *decimal.Decimal) {
	res := pricing.ResolveLine(&item.Product, item.Variant, item.Quantity, optionPrice)

	item.PricePerUnit = res.UnitPrice
	item.TotalPrice = res.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
	item.Savings = res.Savings.Round(2)
	item.TierLabel = ""
	if res.AppliedTier != nil {
		item.TierLabel = res.AppliedTier.Label
	}
	item.QuantityOptionPrice = nil
	if optionPrice != nil {
		p := *optionPrice
		item.QuantityOptionPrice = &p
	} else if res.AppliedOption != nil && res.AppliedOption.PricePerUnit != nil {
		p := *res.AppliedOption.PricePerUnit
		item.QuantityOptionPrice = &p
	}
}

func validateQuantity(q int) error {
	if q < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	if q > MaxQuantityPerItem {
		return apperrors.LimitExceeded(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}
	return nil
}

func cloneVariant(v *domain.Variant) *domain.Variant {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
