package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/pkg/database"
)

const cacheKeyPrefix = "catalog:product:"

// CachedReader is a read-through Redis cache in front of a Reader. Cache
// failures are logged and fall through to the next reader.
type CachedReader struct {
	next   Reader
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedReader wraps next with a cache of the given TTL.
func NewCachedReader(next Reader, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedReader {
	return &CachedReader{next: next, client: client, ttl: ttl, logger: logger}
}

// GetProduct serves from cache, filling it on a miss.
func (r *CachedReader) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	key := cacheKeyPrefix + id

	if p, ok := r.lookup(ctx, key); ok {
		return p, nil
	}

	p, err := r.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(p)
	if err == nil {
		err = r.client.Set(ctx, key, data, r.ttl).Err()
	}
	if err != nil {
		r.logger.WarnContext(ctx, "catalog cache fill failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
	return p, nil
}

func (r *CachedReader) lookup(ctx context.Context, key string) (_ *domain.Product, ok bool) {
	var err error
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "GetCachedProduct", "GET "+key)
	defer func() { end(err) }()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = nil
		} else {
			r.logger.WarnContext(ctx, "catalog cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var p domain.Product
	if err = json.Unmarshal(data, &p); err != nil {
		r.logger.WarnContext(ctx, "catalog cache entry corrupt", slog.String("key", key))
		return nil, false
	}
	return &p, true
}
