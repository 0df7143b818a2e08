// Package routing picks the durable cart store by actor kind: anonymous
// sessions live in the TTL cache, customers in the relational store.
package routing

import (
	"context"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/internal/repository"
)

// CartStore dispatches to Anonymous or Customer.
type CartStore struct {
	Anonymous repository.CartStore
	Customer  repository.CartStore
}

// NewCartStore creates a routing store.
func NewCartStore(anonymous, customer repository.CartStore) *CartStore {
	return &CartStore{Anonymous: anonymous, Customer: customer}
}

func (s *CartStore) pick(actor domain.ActorKey) repository.CartStore {
	if actor.Anonymous {
		return s.Anonymous
	}
	return s.Customer
}

// Load reads from the store owning actor.
func (s *CartStore) Load(ctx context.Context, actor domain.ActorKey) (*domain.Cart, error) {
	return s.pick(actor).Load(ctx, actor)
}

// Save writes to the store owning the cart's actor.
func (s *CartStore) Save(ctx context.Context, c *domain.Cart) error {
	return s.pick(c.ActorKey).Save(ctx, c)
}

// Delete removes from the store owning actor.
func (s *CartStore) Delete(ctx context.Context, actor domain.ActorKey) error {
	return s.pick(actor).Delete(ctx, actor)
}
