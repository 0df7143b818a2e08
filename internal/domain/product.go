package domain

import (
	"github.com/shopspring/decimal"
)

// NoVariant identifies cart lines added without a variant.
const NoVariant = "no-variant"

// Product is a catalog product as read from the catalog collaborator.
type Product struct {
	ID           string          `json:"id"`
	Slug         string          `json:"slug,omitempty"`
	Name         string          `json:"name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	Discount     decimal.Decimal `json:"discount"`
	Currency     string          `json:"currency,omitempty"`
	PricingTiers []PricingTier   `json:"pricing_tiers,omitempty"`
	Variants     []Variant       `json:"variants,omitempty"`
}

// FindVariant returns the variant whose SKU or ID equals id.
func (p *Product) FindVariant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id || (p.Variants[i].SKU != "" && p.Variants[i].SKU == id) {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Variant belongs to exactly one product.
type Variant struct {
	ID              string           `json:"id"`
	SKU             string           `json:"sku,omitempty"`
	Name            string           `json:"name,omitempty"`
	PriceAdjustment decimal.Decimal  `json:"price_adjustment"`
	QuantityOptions []QuantityOption `json:"quantity_options,omitempty"`
}

// Identity is the SKU when set, else the generated ID.
func (v *Variant) Identity() string {
	if v == nil {
		return NoVariant
	}
	if v.SKU != "" {
		return v.SKU
	}
	if v.ID != "" {
		return v.ID
	}
	return NoVariant
}

// FindQuantityOption returns the active option for exactly quantity. The
// single-unit reference option only anchors discount badges and is never
// selectable.
func (v *Variant) FindQuantityOption(quantity int) (*QuantityOption, bool) {
	if v == nil {
		return nil, false
	}
	for i := range v.QuantityOptions {
		o := v.QuantityOptions[i]
		if o.IsActive && !o.IsReference() && o.Quantity == quantity {
			return &v.QuantityOptions[i], true
		}
	}
	return nil, false
}

// QuantityOption is a pack size with an optional per-unit override price.
// The option with Quantity == 1 is the reference price for discount badges.
type QuantityOption struct {
	Quantity     int              `json:"quantity"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit,omitempty"`
	IsActive     bool             `json:"is_active"`
	Label        string           `json:"label,omitempty"`
}

// IsReference reports whether o is the single-unit reference option.
func (o QuantityOption) IsReference() bool {
	return o.Quantity == 1
}

// PricingTier is a quantity-range discount. A nil MaxQuantity is open-ended.
type PricingTier struct {
	MinQuantity int             `json:"min_quantity"`
	MaxQuantity *int            `json:"max_quantity,omitempty"`
	Discount    decimal.Decimal `json:"discount"`
	Label       string          `json:"label,omitempty"`
}

// Valid reports whether the tier bounds are usable.
func (t PricingTier) Valid() bool {
	if t.MinQuantity < 1 {
		return false
	}
	return t.MaxQuantity == nil || *t.MaxQuantity >= t.MinQuantity
}

// Contains reports whether quantity falls inside the tier range.
func (t PricingTier) Contains(quantity int) bool {
	if quantity < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || quantity <= *t.MaxQuantity
}
