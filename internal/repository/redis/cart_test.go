package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/PackStore/internal/domain"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *CartStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewCartStore(client, time.Hour)
}

func sampleCart(actor domain.ActorKey) *domain.Cart {
	opt := decimal.RequireFromString("2.12")
	return &domain.Cart{
		ActorKey: actor,
		Items: []domain.CartItem{{
			ID:                  "line-1",
			Product:             domain.Product{ID: "tape", Name: "Tape", BasePrice: decimal.RequireFromString("2.50")},
			Variant:             &domain.Variant{ID: "v1", SKU: "TAPE-48"},
			Quantity:            25,
			PricePerUnit:        opt,
			TotalPrice:          decimal.RequireFromString("53.00"),
			QuantityOptionPrice: &opt,
		}},
		ShippingMethod: "express",
		UpdatedAt:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCartStore_SaveLoad(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()
	actor := domain.AnonymousSession("sess-1")

	require.NoError(t, store.Save(ctx, sampleCart(actor)))
	assert.True(t, mr.Exists("cart:anon:sess-1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:anon:sess-1"))

	got, err := store.Load(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, actor, got.ActorKey)
	assert.Equal(t, "express", got.ShippingMethod)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].TotalPrice.Equal(decimal.RequireFromString("53")))
	assert.Equal(t, "TAPE-48", got.Items[0].Variant.SKU)
}

func TestCartStore_LoadMissing(t *testing.T) {
	_, store := setupTestRedis(t)

	_, err := store.Load(context.Background(), domain.AnonymousSession("nobody"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartStore_LoadCorrupt(t *testing.T) {
	mr, store := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:anon:bad", "{not json"))

	_, err := store.Load(context.Background(), domain.AnonymousSession("bad"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartStore_Delete(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()
	actor := domain.AnonymousSession("sess-2")

	require.NoError(t, store.Save(ctx, sampleCart(actor)))
	require.NoError(t, store.Delete(ctx, actor))
	assert.False(t, mr.Exists("cart:anon:sess-2"))

	require.NoError(t, store.Delete(ctx, actor))
}

func TestCartStore_Expiry(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()
	actor := domain.AnonymousSession("sess-3")

	require.NoError(t, store.Save(ctx, sampleCart(actor)))
	mr.FastForward(2 * time.Hour)

	_, err := store.Load(ctx, actor)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartStore_ConnectionError(t *testing.T) {
	mr, store := setupTestRedis(t)
	mr.Close()

	err := store.Save(context.Background(), sampleCart(domain.AnonymousSession("x")))
	assert.Error(t, err)
}
