// Package ordertotal derives the VAT breakdown of a checkout summary.
package ordertotal

import (
	"github.com/shopspring/decimal"
)

// DefaultRate is the statutory VAT rate.
var DefaultRate = decimal.RequireFromString("0.20")

// Policy decides the VAT rate and whether shipping is part of the VAT base.
// The shipping treatment is jurisdiction-dependent and must come from
// configuration.
type Policy struct {
	Rate            decimal.Decimal
	ApplyToShipping bool
}

// DefaultPolicy charges 20% on subtotal plus shipping.
func DefaultPolicy() Policy {
	return Policy{Rate: DefaultRate, ApplyToShipping: true}
}

// Breakdown is the VAT-inclusive order total. Prices are VAT-exclusive, so
// Total = Subtotal + Shipping + VATAmount.
type Breakdown struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Shipping       decimal.Decimal `json:"shipping"`
	VATRate        decimal.Decimal `json:"vat_rate"`
	VATAmount      decimal.Decimal `json:"vat_amount"`
	Total          decimal.Decimal `json:"total"`
	ShippingMethod string          `json:"shipping_method"`
}

// Calculator applies a Policy.
type Calculator struct {
	policy Policy
}

// New creates a calculator. A negative rate is treated as zero.
func New(p Policy) *Calculator {
	if p.Rate.IsNegative() {
		p.Rate = decimal.Zero
	}
	return &Calculator{policy: p}
}

// Policy returns the active policy.
func (c *Calculator) Policy() Policy {
	return c.policy
}

// Calculate builds the breakdown. Negative inputs are clamped to zero and
// every amount is rounded to two places.
func (c *Calculator) Calculate(discountedSubtotal, shipping decimal.Decimal, method string) Breakdown {
	sub := clamp(discountedSubtotal).Round(2)
	ship := clamp(shipping).Round(2)

	base := sub
	if c.policy.ApplyToShipping {
		base = base.Add(ship)
	}
	vat := base.Mul(c.policy.Rate).Round(2)

	return Breakdown{
		Subtotal:       sub,
		Shipping:       ship,
		VATRate:        c.policy.Rate,
		VATAmount:      vat,
		Total:          sub.Add(ship).Add(vat),
		ShippingMethod: method,
	}
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
