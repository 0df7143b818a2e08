package repository

import (
	"context"

	"github.com/utafrali/PackStore/internal/domain"
)

// CartStore is the durable cart store. One record exists per actor key;
// an empty cart is deleted rather than stored. Load returns
// apperrors.ErrNotFound when no record exists.
type CartStore interface {
	Load(ctx context.Context, actor domain.ActorKey) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, actor domain.ActorKey) error
}

// OrderReader looks up orders written by the payment webhook.
// GetOrderBySession returns apperrors.ErrNotFound until the order exists.
type OrderReader interface {
	GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error)
}
