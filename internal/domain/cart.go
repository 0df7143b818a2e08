package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ActorKey identifies the owner of a cart.
type ActorKey struct {
	ID        string `json:"id"`
	Anonymous bool   `json:"anonymous"`
}

// Customer returns the key of an authenticated customer.
func Customer(id string) ActorKey { return ActorKey{ID: id} }

// AnonymousSession returns the key of an anonymous browser session.
func AnonymousSession(id string) ActorKey { return ActorKey{ID: id, Anonymous: true} }

// String renders "user:<id>" or "anon:<id>".
func (k ActorKey) String() string {
	if k.Anonymous {
		return "anon:" + k.ID
	}
	return "user:" + k.ID
}

// IsZero reports whether the key carries no identity.
func (k ActorKey) IsZero() bool { return k.ID == "" }

// ParseActorKey parses the String form.
func ParseActorKey(s string) (ActorKey, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return ActorKey{}, fmt.Errorf("malformed actor key %q", s)
	}
	switch kind {
	case "user":
		return Customer(id), nil
	case "anon":
		return AnonymousSession(id), nil
	default:
		return ActorKey{}, fmt.Errorf("unknown actor kind %q", kind)
	}
}

// CartItem is one priced line. TotalPrice is always PricePerUnit*Quantity
// rounded to two places and is never set independently.
type CartItem struct {
	ID                  string           `json:"id"`
	Product             Product          `json:"product"`
	Variant             *Variant         `json:"variant,omitempty"`
	Quantity            int              `json:"quantity"`
	PricePerUnit        decimal.Decimal  `json:"price_per_unit"`
	TotalPrice          decimal.Decimal  `json:"total_price"`
	QuantityOptionPrice *decimal.Decimal `json:"quantity_option_price,omitempty"`
	TierLabel           string           `json:"tier_label,omitempty"`
	Savings             decimal.Decimal  `json:"savings"`
}

// LineKey is the merge identity of a line.
func (i *CartItem) LineKey() string {
	return LineKey(i.Product.ID, i.Variant)
}

// LineKey builds the merge identity from product ID and variant SKU-or-ID.
func LineKey(productID string, v *Variant) string {
	return productID + "|" + v.Identity()
}

// Cart is the persisted cart record. One record exists per actor key.
type Cart struct {
	ActorKey       ActorKey   `json:"actor_key"`
	Items          []CartItem `json:"items"`
	ShippingMethod string     `json:"shipping_method"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount sums line quantities.
func (c *Cart) ItemCount() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// FindItemIndex returns the index of the line with the given merge key, or -1.
func (c *Cart) FindItemIndex(lineKey string) int {
	for i := range c.Items {
		if c.Items[i].LineKey() == lineKey {
			return i
		}
	}
	return -1
}

// FindItemByID returns the index of the line with the given ID, or -1.
func (c *Cart) FindItemByID(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep enough copy for persistence and event payloads.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
