package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/domain"
	pkgkafka "github.com/utafrali/PackStore/pkg/kafka"
)

// Topics written by the storefront.
var (
	TopicCartUpdated       = pkgkafka.Topic("cart", "updated")
	TopicCartCleared       = pkgkafka.Topic("cart", "cleared")
	TopicOrderMaterialized = pkgkafka.Topic("order", "materialized")
)

const (
	aggregateTypeCart  = "cart"
	aggregateTypeOrder = "order"

	// Source identifies events written by this service.
	Source = "packstore"
)

// Publisher is the part of *pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// CartUpdatedData is the cart.updated payload.
type CartUpdatedData struct {
	ActorKey       string          `json:"actor_key"`
	Items          []CartLineData  `json:"items"`
	ItemCount      int             `json:"item_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingMethod string          `json:"shipping_method"`
}

// CartLineData is one line inside CartUpdatedData.
type CartLineData struct {
	ItemID       string          `json:"item_id"`
	ProductID    string          `json:"product_id"`
	VariantKey   string          `json:"variant_key"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

// CartClearedData is the cart.cleared payload.
type CartClearedData struct {
	ActorKey string `json:"actor_key"`
}

// OrderMaterializedData is the order.materialized payload, written once the
// confirmation poller has seen the order.
type OrderMaterializedData struct {
	OrderID   string          `json:"order_id"`
	SessionID string          `json:"session_id"`
	ActorKey  string          `json:"actor_key"`
	Total     decimal.Decimal `json:"total"`
	Attempts  int             `json:"attempts"`
}

// Producer publishes storefront events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishCartUpdated publishes the cart's current lines.
func (p *Producer) PublishCartUpdated(ctx context.Context, c *domain.Cart) error {
	lines := make([]CartLineData, len(c.Items))
	subtotal := decimal.Zero
	for i, it := range c.Items {
		lines[i] = CartLineData{
			ItemID:       it.ID,
			ProductID:    it.Product.ID,
			VariantKey:   it.Variant.Identity(),
			Quantity:     it.Quantity,
			PricePerUnit: it.PricePerUnit,
			TotalPrice:   it.TotalPrice,
		}
		subtotal = subtotal.Add(it.TotalPrice)
	}
	data := CartUpdatedData{
		ActorKey:       c.ActorKey.String(),
		Items:          lines,
		ItemCount:      c.ItemCount(),
		Subtotal:       subtotal,
		ShippingMethod: c.ShippingMethod,
	}
	return p.publish(ctx, TopicCartUpdated, c.ActorKey.String(), aggregateTypeCart, data)
}

// PublishCartCleared publishes that actor's cart is now empty.
func (p *Producer) PublishCartCleared(ctx context.Context, actor domain.ActorKey) error {
	return p.publish(ctx, TopicCartCleared, actor.String(), aggregateTypeCart, CartClearedData{ActorKey: actor.String()})
}

// PublishOrderMaterialized publishes that the poller found the order.
func (p *Producer) PublishOrderMaterialized(ctx context.Context, actor domain.ActorKey, o *domain.Order, attempts int) error {
	data := OrderMaterializedData{
		OrderID:   o.ID,
		SessionID: o.SessionID,
		ActorKey:  actor.String(),
		Total:     o.Total,
		Attempts:  attempts,
	}
	return p.publish(ctx, TopicOrderMaterialized, o.ID, aggregateTypeOrder, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	ev, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
