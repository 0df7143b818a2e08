package cart

import (
	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/ordertotal"
	"github.com/utafrali/PackStore/internal/pricing"
)

// Summary is the cart total before VAT.
type Summary struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Shipping       decimal.Decimal `json:"shipping"`
	Total          decimal.Decimal `json:"total"`
	ShippingMethod string          `json:"shipping_method"`
	ItemCount      int             `json:"item_count"`
	LineCount      int             `json:"line_count"`
}

// CheckoutSummary adds VAT through the order total calculator.
type CheckoutSummary struct {
	ordertotal.Breakdown
	Discount           decimal.Decimal `json:"discount"`
	DiscountedSubtotal decimal.Decimal `json:"discounted_subtotal"`
	ItemCount          int             `json:"item_count"`
}

// Summary totals the cart. Discount comes only from each product's
// promotional percentage; tier and pack savings are already inside
// TotalPrice.
func (a *Aggregate) Summary() Summary {
	subtotal, discount := a.subtotalAndDiscount()
	ship := a.shippingPrice()

	total := subtotal.Sub(discount).Add(ship)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Summary{
		Subtotal:       subtotal,
		Discount:       discount,
		Shipping:       ship,
		Total:          total,
		ShippingMethod: a.cart.ShippingMethod,
		ItemCount:      a.cart.ItemCount(),
		LineCount:      len(a.cart.Items),
	}
}

// SummaryWithShipping is Summary with VAT applied by the calculator.
func (a *Aggregate) SummaryWithShipping() CheckoutSummary {
	subtotal, discount := a.subtotalAndDiscount()
	discounted := subtotal.Sub(discount)
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	return CheckoutSummary{
		Breakdown:          a.totals.Calculate(discounted, a.shippingPrice(), a.cart.ShippingMethod),
		Discount:           discount,
		DiscountedSubtotal: discounted,
		ItemCount:          a.cart.ItemCount(),
	}
}

func (a *Aggregate) subtotalAndDiscount() (decimal.Decimal, decimal.Decimal) {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, it := range a.cart.Items {
		subtotal = subtotal.Add(it.TotalPrice)

		pct := it.Product.Discount
		if !pct.IsPositive() {
			continue
		}
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		adj := decimal.Zero
		if it.Variant != nil {
			adj = it.Variant.PriceAdjustment
		}
		base := pricing.AdjustedBase(it.Product.BasePrice, adj)
		discount = discount.Add(base.Mul(pct).Div(hundred).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return subtotal.Round(2), discount.Round(2)
}

func (a *Aggregate) shippingPrice() decimal.Decimal {
	if a.cart.IsEmpty() {
		return decimal.Zero
	}
	p, _ := a.shipping.Price(a.cart.ShippingMethod)
	return p
}
