// Package catalog reads products from the catalog service.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/utafrali/PackStore/internal/domain"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
	"github.com/utafrali/PackStore/pkg/httpclient"
)

const serviceName = "catalog"

// Reader loads one product with its variants, pack options and tiers.
// A missing product is apperrors.ErrNotFound.
type Reader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Client reads the catalog over HTTP.
type Client struct {
	doer    httpclient.Doer
	baseURL string
}

// NewClient creates a catalog client. doer is normally a
// CircuitBreakerClient.
func NewClient(doer httpclient.Doer, baseURL string) *Client {
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetProduct fetches a product by ID or slug.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	var p domain.Product
	endpoint := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, url.PathEscape(id))
	if err := httpclient.GetJSON(ctx, c.doer, endpoint, serviceName, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
