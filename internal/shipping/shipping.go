// Package shipping holds the shipping price table.
package shipping

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultOption is used when no method has been chosen.
const DefaultOption = "standard"

// Method is one selectable shipping method.
type Method struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// DefaultMethods is the built-in price table.
func DefaultMethods() []Method {
	return []Method{
		{ID: "standard", Label: "Standard delivery", Price: decimal.RequireFromString("4.99")},
		{ID: "express", Label: "Express delivery", Price: decimal.RequireFromString("9.99")},
		{ID: "next-day", Label: "Next day delivery", Price: decimal.RequireFromString("14.99")},
		{ID: "collect", Label: "Click and collect", Price: decimal.Zero},
	}
}

// Table prices shipping methods.
type Table struct {
	methods   []Method
	byID      map[string]Method
	defaultID string
}

// NewTable builds a table. defaultID must name one of methods.
func NewTable(methods []Method, defaultID string) (*Table, error) {
	t := &Table{
		methods:   methods,
		byID:      make(map[string]Method, len(methods)),
		defaultID: defaultID,
	}
	for _, m := range methods {
		if m.Price.IsNegative() {
			return nil, fmt.Errorf("shipping method %q has negative price", m.ID)
		}
		t.byID[m.ID] = m
	}
	if _, ok := t.byID[defaultID]; !ok {
		return nil, fmt.Errorf("default shipping option %q is not in the table", defaultID)
	}
	return t, nil
}

// MustDefaultTable returns the built-in table with the standard default.
func MustDefaultTable() *Table {
	t, err := NewTable(DefaultMethods(), DefaultOption)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the default method ID.
func (t *Table) Default() string {
	return t.defaultID
}

// Has reports whether id is a known method.
func (t *Table) Has(id string) bool {
	_, ok := t.byID[id]
	return ok
}

// Price returns the price for id. Unknown ids fall back to the default
// method's price with ok false.
func (t *Table) Price(id string) (decimal.Decimal, bool) {
	if m, ok := t.byID[id]; ok {
		return m.Price, true
	}
	return t.byID[t.defaultID].Price, false
}

// Methods lists the table in display order.
func (t *Table) Methods() []Method {
	out := make([]Method, len(t.methods))
	copy(out, t.methods)
	return out
}
