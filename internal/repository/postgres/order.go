package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/pkg/database"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// OrderRepository reads orders written by the payment webhook.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a PostgreSQL-backed order reader.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderBySessionSQL = `
	SELECT id::text, session_id, customer_id, status, email, total::text, currency, created_at
	FROM orders
	WHERE session_id = $1`

// GetOrderBySession returns ErrNotFound until the webhook has written the
// order for sessionID.
func (r *OrderRepository) GetOrderBySession(ctx context.Context, sessionID string) (_ *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "GetOrderBySession", orderBySessionSQL)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var (
		o          domain.Order
		customerID *string
		email      *string
		total      string
		createdAt  time.Time
	)
	err = r.db.QueryRow(ctx, orderBySessionSQL, sessionID).Scan(
		&o.ID, &o.SessionID, &customerID, &o.Status, &email, &total, &o.Currency, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", sessionID)
		}
		return nil, fmt.Errorf("query order by session: %w", err)
	}

	o.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse order total %q: %w", total, err)
	}
	if customerID != nil {
		o.CustomerID = *customerID
	}
	if email != nil {
		o.Email = *email
	}
	o.CreatedAt = createdAt
	return &o, nil
}
