package pricing

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/domain"
)

// MatchQuantityOption selects the active non-reference option with the
// largest quantity not above requested. It never rounds up.
func MatchQuantityOption(options []domain.QuantityOption, requested int) (domain.QuantityOption, bool) {
	var (
		best  domain.QuantityOption
		found bool
	)
	for _, o := range options {
		if !o.IsActive || o.IsReference() || o.Quantity > requested {
			continue
		}
		if !found || o.Quantity > best.Quantity {
			best, found = o, true
		}
	}
	return best, found
}

// ReferencePrice is the quantity-1 option's price if present, else the
// price of the smallest active option.
func ReferencePrice(options []domain.QuantityOption) (decimal.Decimal, bool) {
	for _, o := range options {
		if o.IsReference() && o.PricePerUnit != nil {
			return *o.PricePerUnit, true
		}
	}
	var (
		smallest domain.QuantityOption
		found    bool
	)
	for _, o := range options {
		if !o.IsActive || o.PricePerUnit == nil {
			continue
		}
		if !found || o.Quantity < smallest.Quantity {
			smallest, found = o, true
		}
	}
	if !found {
		return decimal.Zero, false
	}
	return *smallest.PricePerUnit, true
}

// DiscountPercent is round(100*(reference-price)/reference). ok is false
// when the badge should not be shown.
func DiscountPercent(reference, price decimal.Decimal) (int, bool) {
	if !reference.IsPositive() {
		return 0, false
	}
	pct := reference.Sub(price).Mul(hundred).Div(reference).Round(0).IntPart()
	if pct <= 0 {
		return 0, false
	}
	return int(pct), true
}

// Badge is a display row for one selectable pack size.
type Badge struct {
	Quantity        int              `json:"quantity"`
	Label           string           `json:"label,omitempty"`
	PricePerUnit    *decimal.Decimal `json:"price_per_unit,omitempty"`
	DiscountPercent int              `json:"discount_percent,omitempty"`
}

// OptionBadges lists active non-reference options by quantity with their
// discount against the reference price.
func OptionBadges(options []domain.QuantityOption) []Badge {
	ref, hasRef := ReferencePrice(options)
	var badges []Badge
	for _, o := range options {
		if !o.IsActive || o.IsReference() {
			continue
		}
		b := Badge{Quantity: o.Quantity, Label: o.Label, PricePerUnit: o.PricePerUnit}
		if hasRef && o.PricePerUnit != nil {
			if pct, ok := DiscountPercent(ref, *o.PricePerUnit); ok {
				b.DiscountPercent = pct
			}
		}
		badges = append(badges, b)
	}
	slices.SortStableFunc(badges, func(a, b Badge) int { return a.Quantity - b.Quantity })
	return badges
}
