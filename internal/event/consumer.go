package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/PackStore/internal/domain"
	pkgkafka "github.com/utafrali/PackStore/pkg/kafka"
)

// TopicOrderCreated is written by the payment webhook once it has stored
// the order.
var TopicOrderCreated = pkgkafka.Topic("order", "created")

// CartRemover deletes an actor's durable cart.
type CartRemover interface {
	Delete(ctx context.Context, actor domain.ActorKey) error
}

// OrderCreatedData is the expected order.created payload.
type OrderCreatedData struct {
	OrderID    string `json:"order_id"`
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
}

// Consumer reacts to order events.
type Consumer struct {
	carts  CartRemover
	logger *slog.Logger
}

// NewConsumer creates an order event consumer.
func NewConsumer(carts CartRemover, logger *slog.Logger) *Consumer {
	return &Consumer{carts: carts, logger: logger}
}

// HandleOrderCreated deletes the buyer's durable cart. Guest orders carry
// no customer ID and are ignored; their session cart expires on its own.
func (c *Consumer) HandleOrderCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCreatedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal order.created data: %w", err)
	}
	if data.CustomerID == "" {
		c.logger.DebugContext(ctx, "order.created without customer, skipping",
			slog.String("order_id", data.OrderID),
		)
		return nil
	}

	actor := domain.Customer(data.CustomerID)
	if err := c.carts.Delete(ctx, actor); err != nil {
		return fmt.Errorf("delete cart for order %s: %w", data.OrderID, err)
	}

	c.logger.InfoContext(ctx, "cart removed after order creation",
		slog.String("order_id", data.OrderID),
		slog.String("actor", actor.String()),
	)
	return nil
}
