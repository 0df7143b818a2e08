package orderlookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/PackStore/pkg/errors"
	"github.com/utafrali/PackStore/pkg/httpclient"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(httpclient.NewWithHTTPClient(srv.Client(), HTTPConfig()), srv.URL)
}

func TestGetOrderBySession(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders/by-session/cs_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"ord-1","session_id":"cs_1","status":"paid","total":"42.50","currency":"GBP"}}`))
	})

	o, err := c.GetOrderBySession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", o.ID)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("42.50")))
}

func TestGetOrderBySession_Statuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		notFound bool
	}{
		{"not yet written", http.StatusNotFound, true},
		{"forbidden", http.StatusForbidden, false},
		{"server error", http.StatusInternalServerError, false},
		{"bad gateway", http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.GetOrderBySession(context.Background(), "cs_x")
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, apperrors.ErrNotFound))
		})
	}
}

func TestHTTPConfig_NoRetries(t *testing.T) {
	assert.Zero(t, HTTPConfig().MaxRetries)
	assert.Equal(t, httpclient.DefaultConfig().Timeout, HTTPConfig().Timeout)
}
