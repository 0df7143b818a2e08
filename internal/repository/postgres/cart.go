package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/pkg/database"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// CartStore keeps customer carts, one row per actor key.
type CartStore struct {
	db database.DBTX
}

// NewCartStore creates a PostgreSQL-backed cart store.
func NewCartStore(db database.DBTX) *CartStore {
	return &CartStore{db: db}
}

const loadCartSQL = `SELECT items, shipping_method, updated_at FROM carts WHERE actor_key = $1`

// Load reads the cart row for actor.
func (s *CartStore) Load(ctx context.Context, actor domain.ActorKey) (_ *domain.Cart, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "LoadCart", loadCartSQL)
	defer func() { end(err) }()

	var (
		items     []byte
		method    string
		updatedAt time.Time
	)
	err = s.db.QueryRow(ctx, loadCartSQL, actor.String()).Scan(&items, &method, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("cart", actor.String())
		}
		return nil, fmt.Errorf("query cart: %w", err)
	}

	c := &domain.Cart{
		ActorKey:       actor,
		ShippingMethod: method,
		UpdatedAt:      updatedAt,
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshal cart items: %w", err)
	}
	return c, nil
}

const saveCartSQL = `
	INSERT INTO carts (actor_key, items, shipping_method, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (actor_key) DO UPDATE SET
		items = EXCLUDED.items,
		shipping_method = EXCLUDED.shipping_method,
		updated_at = EXCLUDED.updated_at`

// Save upserts the cart row. Concurrent writers are last-write-wins.
func (s *CartStore) Save(ctx context.Context, c *domain.Cart) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "SaveCart", saveCartSQL)
	defer func() { end(err) }()

	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshal cart items: %w", err)
	}
	if _, err := s.db.Exec(ctx, saveCartSQL, c.ActorKey.String(), items, c.ShippingMethod, c.UpdatedAt); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}
	return nil
}

const deleteCartSQL = `DELETE FROM carts WHERE actor_key = $1`

// Delete removes the cart row. Deleting a missing row succeeds.
func (s *CartStore) Delete(ctx context.Context, actor domain.ActorKey) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "DeleteCart", deleteCartSQL)
	defer func() { end(err) }()

	if _, err := s.db.Exec(ctx, deleteCartSQL, actor.String()); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
