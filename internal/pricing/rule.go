package pricing

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/domain"
)

// Rule is the pricing rule chosen for one resolution. It is one of
// NoOverride, OptionOverride or TierDiscount.
type Rule interface {
	rule()
}

// NoOverride prices at the adjusted base.
type NoOverride struct{}

// OptionOverride prices at an explicit pack-size unit price.
type OptionOverride struct {
	Price  decimal.Decimal
	Option *domain.QuantityOption
}

// TierDiscount applies a quantity-range percentage to the adjusted base.
type TierDiscount struct {
	Tier domain.PricingTier
}

func (NoOverride) rule()     {}
func (OptionOverride) rule() {}
func (TierDiscount) rule()   {}

// SelectRule picks the rule for in: a positive option price first, then the
// qualifying tier with the highest minimum quantity, then no override.
func SelectRule(in Input) Rule {
	if in.QuantityOptionPrice != nil && in.QuantityOptionPrice.IsPositive() {
		return OptionOverride{Price: *in.QuantityOptionPrice, Option: in.QuantityOption}
	}
	if tier, ok := BestTier(in.Tiers, normalizeQuantity(in.Quantity)); ok {
		return TierDiscount{Tier: tier}
	}
	return NoOverride{}
}

// BestTier returns the valid tier containing quantity with the greatest
// MinQuantity. Equal minimums prefer the larger discount, then the earlier
// tier, so the choice does not depend on catalog ordering beyond that.
func BestTier(tiers []domain.PricingTier, quantity int) (domain.PricingTier, bool) {
	candidates := make([]domain.PricingTier, 0, len(tiers))
	for _, t := range tiers {
		if t.Valid() {
			candidates = append(candidates, t)
		}
	}
	slices.SortStableFunc(candidates, func(a, b domain.PricingTier) int {
		if c := cmp.Compare(b.MinQuantity, a.MinQuantity); c != 0 {
			return c
		}
		return b.Discount.Cmp(a.Discount)
	})
	for _, t := range candidates {
		if t.Contains(quantity) {
			return t, true
		}
	}
	return domain.PricingTier{}, false
}
