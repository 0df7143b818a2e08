// Package orderlookup asks the order service for the order created by a
// payment session.
package orderlookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/pkg/httpclient"
)

const serviceName = "order"

// Client implements repository.OrderReader over HTTP. A 404 is reported as
// apperrors.ErrNotFound; every other non-2xx is a distinct error.
type Client struct {
	doer    httpclient.Doer
	baseURL string
}

// HTTPConfig is the outbound client config for order lookups. Retries are
// disabled: the poller paces attempts itself and any non-404 failure ends
// the poll.
func HTTPConfig() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	return cfg
}

// NewClient creates an order lookup client.
func NewClient(doer httpclient.Doer, baseURL string) *Client {
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetOrderBySession fetches the order for sessionID.
func (c *Client) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	var o domain.Order
	endpoint := fmt.Sprintf("%s/api/v1/orders/by-session/%s", c.baseURL, url.PathEscape(sessionID))
	if err := httpclient.GetJSON(ctx, c.doer, endpoint, serviceName, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
