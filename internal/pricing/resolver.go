// Package pricing turns a catalog product and a requested quantity into a
// deterministic unit price. Everything here is pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Input is one resolution request.
type Input struct {
	BasePrice           decimal.Decimal
	VariantAdjustment   decimal.Decimal
	Quantity            int
	Tiers               []domain.PricingTier
	QuantityOptionPrice *decimal.Decimal
	QuantityOption      *domain.QuantityOption
}

// Result is the resolved price.
type Result struct {
	UnitPrice     decimal.Decimal        `json:"unit_price"`
	AdjustedBase  decimal.Decimal        `json:"adjusted_base"`
	AppliedTier   *domain.PricingTier    `json:"applied_tier,omitempty"`
	AppliedOption *domain.QuantityOption `json:"applied_option,omitempty"`
	Savings       decimal.Decimal        `json:"savings"`
}

// AdjustedBase is base plus variant adjustment, never below zero.
func AdjustedBase(base, adjustment decimal.Decimal) decimal.Decimal {
	return nonNegative(base.Add(adjustment))
}

// Resolve prices in. Quantities below one are treated as one.
func Resolve(in Input) Result {
	qty := decimal.NewFromInt(int64(normalizeQuantity(in.Quantity)))
	base := AdjustedBase(in.BasePrice, in.VariantAdjustment)
	res := Result{AdjustedBase: base, UnitPrice: base, Savings: zero}

	switch r := SelectRule(in).(type) {
	case OptionOverride:
		res.UnitPrice = r.Price
		res.AppliedOption = r.Option
	case TierDiscount:
		tier := r.Tier
		res.AppliedTier = &tier
		if d := clampPercent(tier.Discount); d.IsPositive() {
			res.UnitPrice = base.Mul(hundred.Sub(d)).Div(hundred)
		}
	case NoOverride:
	}

	res.Savings = nonNegative(base.Mul(qty).Sub(res.UnitPrice.Mul(qty)))
	return res
}

// ResolveLine prices quantity units of product/variant. A nil optionPrice
// falls back to the variant's best-fit pack size.
func ResolveLine(p *domain.Product, v *domain.Variant, quantity int, optionPrice *decimal.Decimal) Result {
	in := Input{
		BasePrice: p.BasePrice,
		Quantity:  quantity,
		Tiers:     p.PricingTiers,
	}
	if v != nil {
		in.VariantAdjustment = v.PriceAdjustment
	}
	if optionPrice != nil {
		in.QuantityOptionPrice = optionPrice
	} else if v != nil {
		if opt, ok := MatchQuantityOption(v.QuantityOptions, quantity); ok {
			in.QuantityOption = &opt
			in.QuantityOptionPrice = opt.PricePerUnit
		}
	}
	return Resolve(in)
}

// Preview answers "what would this cost" for the catalog page.
func Preview(p *domain.Product, v *domain.Variant, quantity int) PreviewResult {
	q := normalizeQuantity(quantity)
	res := ResolveLine(p, v, q, nil)
	out := PreviewResult{
		Result:   res,
		Quantity: q,
		Total:    res.UnitPrice.Mul(decimal.NewFromInt(int64(q))).Round(2),
	}
	if v != nil {
		out.Badges = OptionBadges(v.QuantityOptions)
	}
	return out
}

// PreviewResult is a resolution plus its line total and pack badges.
type PreviewResult struct {
	Result
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
	Badges   []Badge         `json:"badges,omitempty"`
}

func normalizeQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}

func clampPercent(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}
