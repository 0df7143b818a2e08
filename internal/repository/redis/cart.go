package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/pkg/database"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

const keyPrefix = "cart:"

// CartStore keeps carts as JSON documents with a sliding TTL. It backs
// anonymous sessions, whose carts are disposable.
type CartStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCartStore creates a Redis-backed cart store.
func NewCartStore(client redis.Cmdable, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func key(actor domain.ActorKey) string {
	return keyPrefix + actor.String()
}

// Load reads the cart for actor.
func (s *CartStore) Load(ctx context.Context, actor domain.ActorKey) (_ *domain.Cart, err error) {
	k := key(actor)
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "LoadCart", "GET "+k)
	defer func() { end(err) }()

	data, err := s.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", actor.String())
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &c, nil
}

// Save overwrites the cart and refreshes its TTL.
func (s *CartStore) Save(ctx context.Context, c *domain.Cart) (err error) {
	k := key(c.ActorKey)
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "SaveCart", "SET "+k)
	defer func() { end(err) }()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, k, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

// Delete removes the cart. Deleting a missing cart succeeds.
func (s *CartStore) Delete(ctx context.Context, actor domain.ActorKey) (err error) {
	k := key(actor)
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "DeleteCart", "DEL "+k)
	defer func() { end(err) }()

	if err := s.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}
